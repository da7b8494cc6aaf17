package transcription

// Stage is a step of the transcription state machine. Requests move strictly
// forward: received, decoded, model_selected, transcribed, then optionally
// punctuation_restored and cleaned, then completed.
type Stage string

const (
	StageReceived            Stage = "received"
	StageDecoded             Stage = "decoded"
	StageModelSelected       Stage = "model_selected"
	StageTranscribed         Stage = "transcribed"
	StagePunctuationRestored Stage = "punctuation_restored"
	StageCleaned             Stage = "cleaned"
	StageCompleted           Stage = "completed"
)
