package chatcore

// TruncateHistory bounds the conversation to the most recent messageLimit
// elements, then drops the oldest messages until the estimated token total
// fits tokenLimit. A limit <= 0 disables that bound.
//
// The message limit is applied to the full sequence, so a leading system
// message is dropped like any other once the conversation outgrows it.
func TruncateHistory(history Conversation, tokenLimit, messageLimit int) Conversation {
	if len(history) == 0 {
		return history
	}

	if messageLimit > 0 && len(history) > messageLimit {
		history = history[len(history)-messageLimit:]
	}

	if tokenLimit <= 0 {
		return history
	}

	totalTokens := 0
	for _, msg := range history {
		totalTokens += EstimateTokens(msg.Content)
	}

	for totalTokens > tokenLimit && len(history) > 0 {
		totalTokens -= EstimateTokens(history[0].Content)
		history = history[1:]
	}

	return history
}

// AddMessage appends a message with the given role and content.
func AddMessage(history Conversation, role Role, content string) Conversation {
	return append(history, Message{Role: role, Content: content})
}
