package autocompact

import "context"

// LastAssistantTurn returns the most recent assistant message of a session.
// A failed read is reported the same way as a history with no assistant
// turn: absent, so callers wait rather than surface transport errors.
func LastAssistantTurn(ctx context.Context, reader MessageReader, sessionID, directory string) (*AssistantTurnInfo, bool) {
	if reader == nil {
		return nil, false
	}
	messages, err := reader.Messages(ctx, sessionID, directory)
	if err != nil || messages == nil {
		return nil, false
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Info.Role == RoleAssistant {
			info := messages[i].Info
			return &info, true
		}
	}
	return nil, false
}
