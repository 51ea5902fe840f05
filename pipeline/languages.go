package pipeline

// DefaultLanguage is used when a user has not picked a language yet.
const DefaultLanguage = "ru"

// MenuPrompt is shown above the language keyboard. It is bilingual because
// the user's language is unknown at that point.
const MenuPrompt = "Выберите язык / Select language:"

// Language is one entry of the language menu.
type Language struct {
	Label string
	Code  string
}

var languages = []Language{
	{Label: "English", Code: "en"},
	{Label: "Русский", Code: "ru"},
	{Label: "Қазақша", Code: "kk"},
	{Label: "Кыргызча", Code: "ky"},
	{Label: "O'zbekcha", Code: "uz"},
	{Label: "Українська", Code: "uk"},
}

// Languages returns the language menu in display order.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// LanguageLabels returns the menu labels in display order.
func LanguageLabels() []string {
	out := make([]string, len(languages))
	for i, l := range languages {
		out[i] = l.Label
	}
	return out
}

// LanguageCode returns the code for a menu label.
func LanguageCode(label string) (string, bool) {
	for _, l := range languages {
		if l.Label == label {
			return l.Code, true
		}
	}
	return "", false
}
