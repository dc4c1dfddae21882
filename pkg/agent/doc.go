// Package agent implements the conversation-side of escalation handling:
// a per-conversation coordinator that raises escalations through the broker
// client, keeps the dialogue alive with scheduled stall content while a
// human decides, and injects the decision into the conversation the moment
// it arrives. The conversation engine itself (speech, text generation) is
// an external collaborator behind the Model interface.
package agent
