package model

// Reply is one outbound message to the chat transport: plain text plus an
// optional button menu. Button captions are the transport's callback payloads,
// so the dialog matches incoming callback text against the same captions.
type Reply struct {
	Text    string   `json:"text"`
	Buttons []string `json:"buttons,omitempty"`
}

func TextReply(text string) Reply {
	return Reply{Text: text}
}

func MenuReply(text string, buttons ...string) Reply {
	return Reply{Text: text, Buttons: buttons}
}
