package pipeline

import "github.com/jonwraymond/botguard/store"

// Localized text keys.
const (
	TextWelcome        = "welcome"
	TextContact        = "contact"
	TextAsk            = "ask"
	TextChange         = "change"
	TextContactMessage = "contact_message"
	TextAskMessage     = "ask_message"
	TextThink          = "think"
	TextError          = "error"
	TextRetry          = "retry"
	TextSaid           = "said"
	TextRateLimit      = "rate_limit_error"
)

var defaultTexts = map[string]map[string]string{
	"en": {
		TextWelcome:        "Welcome! Pick an option below or just ask your question.",
		TextContact:        "📞 Contact us",
		TextAsk:            "❓ Ask a question",
		TextChange:         "🌐 Change language",
		TextContactMessage: "Leave your phone number or email and a manager will get back to you.",
		TextAskMessage:     "Type your question or send a voice message.",
		TextThink:          "Thinking...",
		TextError:          "Sorry, I could not get an answer right now. Please try again later.",
		TextRetry:          "I could not recognize the voice message. Please try again.",
		TextSaid:           "You said:",
		TextRateLimit:      "Too many requests. Please wait a minute and try again.",
	},
	"ru": {
		TextWelcome:        "Добро пожаловать! Выберите действие или просто задайте вопрос.",
		TextContact:        "📞 Связаться с нами",
		TextAsk:            "❓ Задать вопрос",
		TextChange:         "🌐 Сменить язык",
		TextContactMessage: "Оставьте телефон или email, и менеджер свяжется с вами.",
		TextAskMessage:     "Напишите вопрос или отправьте голосовое сообщение.",
		TextThink:          "Думаю...",
		TextError:          "Извините, сейчас не удалось получить ответ. Попробуйте позже.",
		TextRetry:          "Не удалось распознать голосовое сообщение. Попробуйте ещё раз.",
		TextSaid:           "Вы сказали:",
		TextRateLimit:      "Слишком много запросов. Подождите минуту и попробуйте снова.",
	},
}

// DefaultTexts returns the stock English and Russian interface strings for
// seeding a fresh store.
func DefaultTexts() []store.UIText {
	var out []store.UIText
	for _, lang := range []string{"en", "ru"} {
		for _, key := range []string{
			TextWelcome, TextContact, TextAsk, TextChange, TextContactMessage,
			TextAskMessage, TextThink, TextError, TextRetry, TextSaid, TextRateLimit,
		} {
			out = append(out, store.UIText{Key: key, Language: lang, Text: defaultTexts[lang][key]})
		}
	}
	return out
}
