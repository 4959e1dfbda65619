package generator

import "github.com/luisa-bot-go/internal/services/classifier"

var quickReplies = map[classifier.Category][]string{
	classifier.Affection: {
		"sai fora esquisito",
		"ja pensou o pq de ninguem te amar?",
		"para de ser estranho",
		"cringe",
		"que isso mano",
	},
	classifier.Insult: {
		"ok amigao",
		"entendi, passa bem",
		"chora mais",
		"e eu com isso?",
		"tanto faz",
		"nossa que medo",
		"proximo, por favor",
	},
}

var fallbackReplies = map[classifier.Category][]string{
	classifier.Plan:          {"sei la, vc que sabe", "nao sei, tu que decide", "qualquer coisa serve", "tanto faz mano", "voce escolhe"},
	classifier.Wellbeing:     {"to bem, e tu?", "suave, e vc?", "de boa, e ai?", "tranquilo", "normal"},
	classifier.Activity:      {"nada demais", "relaxando", "vendo uns video", "jogando", "conversando aqui"},
	classifier.Greeting:      {"fala", "e ai", "opa", "salve", "beleza"},
	classifier.Food:          {"to com fome tambem", "quero pizza", "bora pedir algo", "que fome"},
	classifier.Gaming:        {"bora jogar", "que jogo?", "to dentro", "chama", "vamo"},
	classifier.Entertainment: {"ja vi", "e bom?", "nao assisti", "quero ver"},
	classifier.Question:      {"sei la", "nao sei", "acho que sim", "depende", "pode ser"},
	classifier.General:       {"pois e", "real", "entendi", "hmm", "interessante", "verdade"},
}

// QuickReplies returns the canned set for a quick-reply category.
func QuickReplies(category classifier.Category) []string {
	return quickReplies[category]
}

// FallbackReplies returns the canned set for category, or the general set.
func FallbackReplies(category classifier.Category) []string {
	if replies, ok := fallbackReplies[category]; ok {
		return replies
	}
	return fallbackReplies[classifier.General]
}
