package agent

import "context"

// Model is the external conversation engine the coordinator drives. The
// engine owns speech and text generation; the coordinator only hands it
// instructions and content.
type Model interface {
	// Generate produces conversational text from an instruction prompt.
	Generate(ctx context.Context, instructions string) (string, error)
	// Speak surfaces text in the ongoing conversation.
	Speak(ctx context.Context, text string) error
}

// Interrupter is implemented by engines that can cut off an in-progress
// utterance. When available, it is invoked before injecting the human
// response so the response is not talked over.
type Interrupter interface {
	Interrupt(ctx context.Context) error
}
