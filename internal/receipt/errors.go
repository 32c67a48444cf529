package receipt

// InputError reports a malformed or incomplete request
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}

// ConfigurationError reports that extraction is not available in this process
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return e.Msg
}

const quotaMessage = "Quota exceeded.\n\n" +
	"Fix:\n" +
	"1) Go to https://aistudio.google.com/apikey\n" +
	"2) Create API key in a NEW project\n" +
	"3) Restart with the new key"

const missingKeyMessage = "GEMINI_API_KEY not set. Get free key: https://aistudio.google.com/apikey"
