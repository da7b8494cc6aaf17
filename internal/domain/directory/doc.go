/*
Package directory holds the static map of stacks and the backend services
they group.

A Directory is built once at startup, either from Default or from a YAML,
TOML or JSON file validated against an embedded JSON schema, and is never
mutated afterwards. Service ids are unique across the whole directory;
New rejects a configuration that reuses one.

Example file:

	stacks:
	  - id: stt
	    name: Speech-to-Text
	    icon: mic
	    services:
	      - id: whisper
	        display: Whisper
	        container: whisper-rocm
	        port: 9000
	        url: http://localhost:9000
*/
package directory
