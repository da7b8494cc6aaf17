package directory

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateStack   = errors.New("duplicate stack id")
	ErrDuplicateService = errors.New("duplicate service id")
	ErrInvalid          = errors.New("invalid directory")
)

// Service describes one backend container.
type Service struct {
	ID   string `json:"id"`
	Name string `json:"display"`
	// Backend is the container name the engine knows the service by.
	Backend string `json:"container"`
	URL     string `json:"url,omitempty"`
	Port    int    `json:"port,omitempty"`
	// ComposeService is the compose service lifecycle commands target.
	ComposeService string `json:"compose_service,omitempty"`
}

// Stack groups services. A stack may be empty.
type Stack struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Icon     string    `json:"icon"`
	Services []Service `json:"services"`
}

// ServiceIDs returns the ids of the stack's services in declaration order.
func (s Stack) ServiceIDs() []string {
	ids := make([]string, len(s.Services))
	for i, svc := range s.Services {
		ids[i] = svc.ID
	}
	return ids
}

// Directory is the immutable stack → service mapping. It is safe for
// concurrent use; accessors hand out copies.
type Directory struct {
	stacks   []Stack
	byStack  map[string]int
	services map[string]Service
	owner    map[string]string
}

// New validates stacks and builds a directory. Service ids must be unique
// across all stacks because the gateway looks services up by id alone.
func New(stacks ...Stack) (*Directory, error) {
	d := &Directory{
		stacks:   make([]Stack, 0, len(stacks)),
		byStack:  make(map[string]int, len(stacks)),
		services: make(map[string]Service),
		owner:    make(map[string]string),
	}

	for _, stack := range stacks {
		if stack.ID == "" {
			return nil, fmt.Errorf("%w: stack without id", ErrInvalid)
		}
		if _, dup := d.byStack[stack.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStack, stack.ID)
		}

		members := make([]Service, 0, len(stack.Services))
		for _, svc := range stack.Services {
			if svc.ID == "" {
				return nil, fmt.Errorf("%w: service without id in stack %q", ErrInvalid, stack.ID)
			}
			if svc.Backend == "" {
				return nil, fmt.Errorf("%w: service %q has no container", ErrInvalid, svc.ID)
			}
			if other, dup := d.owner[svc.ID]; dup {
				return nil, fmt.Errorf("%w: %q in stacks %q and %q", ErrDuplicateService, svc.ID, other, stack.ID)
			}
			if svc.ComposeService == "" {
				svc.ComposeService = svc.ID
			}
			if svc.Name == "" {
				svc.Name = svc.ID
			}
			d.services[svc.ID] = svc
			d.owner[svc.ID] = stack.ID
			members = append(members, svc)
		}

		stack.Services = members
		d.byStack[stack.ID] = len(d.stacks)
		d.stacks = append(d.stacks, stack)
	}

	return d, nil
}

// Stacks returns every stack in declaration order.
func (d *Directory) Stacks() []Stack {
	out := make([]Stack, len(d.stacks))
	for i, s := range d.stacks {
		out[i] = cloneStack(s)
	}
	return out
}

// Stack looks up a stack by id.
func (d *Directory) Stack(id string) (Stack, error) {
	i, ok := d.byStack[id]
	if !ok {
		return Stack{}, fmt.Errorf("stack %s %w", id, ErrNotFound)
	}
	return cloneStack(d.stacks[i]), nil
}

// Service looks up a service by id across all stacks.
func (d *Directory) Service(id string) (Service, error) {
	svc, ok := d.services[id]
	if !ok {
		return Service{}, fmt.Errorf("service %s %w", id, ErrNotFound)
	}
	return svc, nil
}

// StackOf returns the id of the stack that owns a service.
func (d *Directory) StackOf(serviceID string) (string, bool) {
	id, ok := d.owner[serviceID]
	return id, ok
}

// ServiceIDs returns every service id, sorted.
func (d *Directory) ServiceIDs() []string {
	return slices.Sorted(maps.Keys(d.services))
}

func cloneStack(s Stack) Stack {
	s.Services = slices.Clone(s.Services)
	if s.Services == nil {
		s.Services = []Service{}
	}
	return s
}

// Default mirrors the stock compose file: Ollama, Whisper and ComfyUI on
// ROCm, plus an empty text-to-speech stack.
func Default() *Directory {
	d, err := New(
		Stack{ID: "llm", Name: "LLM Inference", Icon: "brain", Services: []Service{
			{ID: "ollama", Name: "Ollama", Backend: "ollama-rocm", Port: 11434, URL: "http://localhost:11434"},
		}},
		Stack{ID: "stt", Name: "Speech-to-Text", Icon: "mic", Services: []Service{
			{ID: "whisper", Name: "Whisper", Backend: "whisper-rocm", Port: 9000, URL: "http://localhost:9000"},
		}},
		Stack{ID: "image", Name: "Image Generation", Icon: "image", Services: []Service{
			{ID: "comfyui", Name: "ComfyUI", Backend: "comfyui", Port: 8188, URL: "http://localhost:8188"},
		}},
		Stack{ID: "tts", Name: "Text-to-Speech", Icon: "volume-2"},
	)
	if err != nil {
		panic(err)
	}
	return d
}
