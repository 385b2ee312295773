package models

// TranslateRequest is one text translation call. Model, KeepAlive and
// ContextLength are optional hints that only some providers honour.
type TranslateRequest struct {
	Text          string
	Source        string
	Target        string
	Model         string
	KeepAlive     string
	ContextLength int
}

// TranslationPrompt is the system instruction shared by the chat-model
// translators.
func TranslationPrompt(source, target string) string {
	return "You are a professional translator. Translate the following text from " +
		source + " to " + target + ". Output ONLY the translation, nothing else."
}
