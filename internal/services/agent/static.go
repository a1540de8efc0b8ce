package agent

import (
	"context"

	"github.com/fluentlabs/lernplan/internal/models"
)

// StaticProvider serves pre-authored content per level and capability.
// It has no external dependency, so it sits at the end of every fallback
// chain as the provider of last resort.
type StaticProvider struct {
	capability models.Capability
}

// NewStaticProvider creates a static provider for one capability
func NewStaticProvider(capability models.Capability) *StaticProvider {
	return &StaticProvider{capability: capability}
}

// Name identifies this backend
func (p *StaticProvider) Name() string { return "static" }

// Capability reports the capability this provider serves
func (p *StaticProvider) Capability() models.Capability { return p.capability }

// Generate returns the canned block for the request's level
func (p *StaticProvider) Generate(ctx context.Context, req *models.GenerationRequest) (*models.ContentBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	level := req.Level
	if !level.Valid() {
		level = models.LevelA1
	}
	canned, ok := staticContent[p.capability][level]
	if !ok {
		canned = staticContent[p.capability][models.LevelA1]
	}

	block := canned // copy
	block.Capability = p.capability
	block.Topic = req.Topic.Name
	block.Level = level
	block.Provider = p.Name()
	return &block, nil
}

// staticContent holds one pre-authored block per capability and level.
// The sentences follow the Goethe syllabus progression.
var staticContent = map[models.Capability]map[models.Level]models.ContentBlock{
	models.CapabilityGrammar: {
		models.LevelA1: {
			Explanation: "German sentences at this level follow subject-verb-object order. The verb always comes second.",
			Examples: []models.Example{
				{Text: "Das ist mein Haus.", Translation: "That is my house."},
				{Text: "Ich trinke Kaffee.", Translation: "I drink coffee."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Order the words: Haus / ist / das / mein", Answer: "Das ist mein Haus.", Kind: "transform"},
				{Prompt: "Ich ___ Wasser. (trinken)", Answer: "trinke", Kind: "fill_blank"},
			},
			Tip: "Keep the conjugated verb in second position, whatever comes first.",
		},
		models.LevelA2: {
			Explanation: "The perfect tense describes past events: a form of 'haben' or 'sein' plus the past participle at the end.",
			Examples: []models.Example{
				{Text: "Ich habe gestern ein Buch gelesen.", Translation: "I read a book yesterday."},
				{Text: "Wir sind nach Berlin gefahren.", Translation: "We drove to Berlin."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Ich ___ einen Film gesehen. (haben/sein)", Answer: "habe", Kind: "fill_blank"},
				{Prompt: "Put into the perfect tense: Ich lese die Zeitung.", Answer: "Ich habe die Zeitung gelesen.", Kind: "transform"},
			},
			Tip: "Verbs of movement and change of state take 'sein', most others take 'haben'.",
		},
		models.LevelB1: {
			Explanation: "Konjunktiv II expresses hypothetical situations, usually with 'würde' plus infinitive or with 'hätte' and 'wäre'.",
			Examples: []models.Example{
				{Text: "Wenn ich Zeit hätte, würde ich nach Deutschland reisen.", Translation: "If I had time, I would travel to Germany."},
				{Text: "Ich wäre gern Musiker.", Translation: "I would like to be a musician."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Wenn ich reich ___, würde ich ein Haus kaufen.", Answer: "wäre", Kind: "fill_blank"},
				{Prompt: "Rewrite hypothetically: Ich habe Zeit. Ich helfe dir.", Answer: "Wenn ich Zeit hätte, würde ich dir helfen.", Kind: "transform"},
			},
			Tip: "In the wenn-clause use hätte/wäre; in the main clause use würde + infinitive.",
		},
		models.LevelB2: {
			Explanation: "The past perfect (Plusquamperfekt) orders two past events: 'hatte'/'war' plus past participle marks the earlier one.",
			Examples: []models.Example{
				{Text: "Nachdem er die Prüfung bestanden hatte, feierte er mit Freunden.", Translation: "After he had passed the exam, he celebrated with friends."},
				{Text: "Sie war schon gegangen, als ich ankam.", Translation: "She had already left when I arrived."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Nachdem wir gegessen ___, gingen wir spazieren.", Answer: "hatten", Kind: "fill_blank"},
				{Prompt: "Combine with nachdem: Er lernte Deutsch. Er zog nach Wien.", Answer: "Nachdem er Deutsch gelernt hatte, zog er nach Wien.", Kind: "transform"},
			},
			Tip: "'Nachdem' almost always forces the Plusquamperfekt in its clause.",
		},
		models.LevelC1: {
			Explanation: "Concessive clauses with 'trotz' and 'obwohl' contrast expectation and outcome; 'trotz' takes the genitive.",
			Examples: []models.Example{
				{Text: "Trotz der schwierigen Umstände gelang es ihm, sein Ziel zu erreichen.", Translation: "Despite the difficult circumstances, he managed to reach his goal."},
				{Text: "Obwohl es regnete, gingen wir wandern.", Translation: "Although it rained, we went hiking."},
			},
			Exercises: []models.Exercise{
				{Prompt: "___ des Regens fand das Konzert statt.", Answer: "Trotz", Kind: "fill_blank"},
				{Prompt: "Rewrite with trotz: Obwohl er krank war, arbeitete er.", Answer: "Trotz seiner Krankheit arbeitete er.", Kind: "transform"},
			},
			Tip: "Prefer nominalization with 'trotz' in formal registers.",
		},
		models.LevelC2: {
			Explanation: "Indirect questions with 'inwieweit' and verb-final order mark academic register and hedged claims.",
			Examples: []models.Example{
				{Text: "Inwieweit die Hypothese zutrifft, bleibt abzuwarten.", Translation: "To what extent the hypothesis holds remains to be seen."},
				{Text: "Es ist fraglich, inwieweit sich das Ergebnis verallgemeinern lässt.", Translation: "It is questionable to what extent the result can be generalized."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Rewrite as an indirect question: Trifft die Annahme zu?", Answer: "Inwieweit die Annahme zutrifft, ist offen.", Kind: "transform"},
				{Prompt: "Es bleibt abzuwarten, ___ die Methode skaliert.", Answer: "inwieweit", Kind: "fill_blank"},
			},
			Tip: "Hedging with 'bleibt abzuwarten' softens claims in academic writing.",
		},
	},
	models.CapabilityVocabulary: {
		models.LevelA1: {
			Explanation: "German builds compound nouns by joining words; the last element decides gender and meaning core. 'Schulbuch' = Schule + Buch.",
			Examples: []models.Example{
				{Text: "das Schulbuch", Translation: "the school book"},
				{Text: "die Haustür", Translation: "the front door"},
			},
			Exercises: []models.Exercise{
				{Prompt: "Combine: Kinder + Garten", Answer: "der Kindergarten", Kind: "transform"},
				{Prompt: "Which word decides the gender of 'Schulbuch'?", Answer: "Buch", Kind: "respond"},
			},
			Tip: "Always learn nouns together with their article.",
		},
		models.LevelA2: {
			Explanation: "'Arbeitgeber' (employer) and 'Arbeitnehmer' (employee) show how agent nouns derive from verbs: geben → Geber, nehmen → Nehmer.",
			Examples: []models.Example{
				{Text: "Mein Arbeitgeber ist eine kleine Firma.", Translation: "My employer is a small company."},
				{Text: "Die Arbeitnehmer streiken heute.", Translation: "The employees are on strike today."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Derive the agent noun: fahren → ?", Answer: "Fahrer", Kind: "transform"},
				{Prompt: "Der ___ zahlt das Gehalt. (employer)", Answer: "Arbeitgeber", Kind: "fill_blank"},
			},
			Tip: "-er nouns from verbs are almost always masculine.",
		},
		models.LevelB1: {
			Explanation: "'Umweltschutz' (environmental protection) anchors a word family: Umwelt, schützen, der Schutz, umweltfreundlich.",
			Examples: []models.Example{
				{Text: "Umweltschutz ist ein wichtiges Thema.", Translation: "Environmental protection is an important topic."},
				{Text: "Wir kaufen umweltfreundliche Produkte.", Translation: "We buy environmentally friendly products."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Form the adjective: Umwelt + freundlich", Answer: "umweltfreundlich", Kind: "transform"},
				{Prompt: "Der ___ der Natur geht alle an. (protection)", Answer: "Schutz", Kind: "fill_blank"},
			},
			Tip: "Learning one compound often unlocks a whole word family.",
		},
		models.LevelB2: {
			Explanation: "'Verantwortungsbewusstsein' stacks three elements: Verantwortung + s + Bewusstsein, with a linking -s- between them.",
			Examples: []models.Example{
				{Text: "Sie zeigt großes Verantwortungsbewusstsein.", Translation: "She shows a strong sense of responsibility."},
				{Text: "Verantwortungsbewusste Eltern planen voraus.", Translation: "Responsible parents plan ahead."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Split into parts: Verantwortungsbewusstsein", Answer: "Verantwortung + s + Bewusstsein", Kind: "respond"},
				{Prompt: "Form: Gesundheit + s + Wesen", Answer: "Gesundheitswesen", Kind: "transform"},
			},
			Tip: "The linking -s- appears after -ung, -heit, -keit and -schaft.",
		},
		models.LevelC1: {
			Explanation: "'Auseinandersetzung' spans meanings from 'dispute' to 'in-depth engagement'; the prefix cluster aus-einander- signals separation.",
			Examples: []models.Example{
				{Text: "Die Auseinandersetzung mit dem Thema lohnt sich.", Translation: "Engaging deeply with the topic is worthwhile."},
				{Text: "Es kam zu einer heftigen Auseinandersetzung.", Translation: "A fierce dispute broke out."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Which meaning fits 'wissenschaftliche Auseinandersetzung'?", Answer: "in-depth engagement", Kind: "respond"},
				{Prompt: "sich ___ mit + Dativ (to engage with)", Answer: "auseinandersetzen", Kind: "fill_blank"},
			},
			Tip: "Context decides between the conflict and engagement readings.",
		},
		models.LevelC2: {
			Explanation: "'Unverhältnismäßigkeit' (disproportionality) layers negation (un-), base (Verhältnis), adjectival -mäßig and nominal -keit.",
			Examples: []models.Example{
				{Text: "Das Gericht rügte die Unverhältnismäßigkeit der Maßnahme.", Translation: "The court criticized the disproportionality of the measure."},
				{Text: "Der Eingriff wurde als unverhältnismäßig eingestuft.", Translation: "The intervention was classified as disproportionate."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Build the noun: unverhältnismäßig → ?", Answer: "Unverhältnismäßigkeit", Kind: "transform"},
				{Prompt: "Decompose: Un + ? + mäßig + keit", Answer: "Verhältnis", Kind: "respond"},
			},
			Tip: "Legal German loves -keit nominalizations; parse them layer by layer.",
		},
	},
	models.CapabilityConversation: {
		models.LevelA1: {
			Explanation: "Introducing yourself: 'Wie heißt du?' is informal, 'Wie heißen Sie?' is formal. Answer with 'Ich heiße ...'.",
			Examples: []models.Example{
				{Text: "Hallo, wie heißt du? — Ich heiße Anna.", Translation: "Hello, what's your name? — My name is Anna."},
				{Text: "Woher kommst du? — Ich komme aus Spanien.", Translation: "Where are you from? — I'm from Spain."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Respond to: Wie heißt du?", Answer: "Ich heiße ...", Kind: "respond"},
				{Prompt: "Make formal: Wie heißt du?", Answer: "Wie heißen Sie?", Kind: "transform"},
			},
			Tip: "Use 'Sie' with strangers and in shops until offered 'du'.",
		},
		models.LevelA2: {
			Explanation: "Asking for help politely: 'Können Sie mir helfen?' uses the modal verb 'können' plus the dative pronoun 'mir'.",
			Examples: []models.Example{
				{Text: "Entschuldigung, können Sie mir helfen?", Translation: "Excuse me, can you help me?"},
				{Text: "Natürlich, was suchen Sie?", Translation: "Of course, what are you looking for?"},
			},
			Exercises: []models.Exercise{
				{Prompt: "Ask a stranger for directions to the station.", Answer: "Entschuldigung, wie komme ich zum Bahnhof?", Kind: "respond"},
				{Prompt: "Können Sie ___ helfen? (me)", Answer: "mir", Kind: "fill_blank"},
			},
			Tip: "Open requests with 'Entschuldigung' to sound polite.",
		},
		models.LevelB1: {
			Explanation: "Giving opinions: 'Was denkst du über ...?' invites 'Ich finde, dass ...' or 'Meiner Meinung nach ...'.",
			Examples: []models.Example{
				{Text: "Was denkst du über dieses Thema?", Translation: "What do you think about this topic?"},
				{Text: "Meiner Meinung nach ist das eine gute Idee.", Translation: "In my opinion that is a good idea."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Give your opinion on remote work in one sentence.", Answer: "Meiner Meinung nach ...", Kind: "respond"},
				{Prompt: "___ Meinung nach stimmt das nicht. (my)", Answer: "Meiner", Kind: "fill_blank"},
			},
			Tip: "'Meiner Meinung nach' pushes the verb directly after it.",
		},
		models.LevelB2: {
			Explanation: "Structured discussion: 'Könnten wir über die Vor- und Nachteile diskutieren?' frames a balanced pro/contra exchange.",
			Examples: []models.Example{
				{Text: "Könnten wir über die Vor- und Nachteile diskutieren?", Translation: "Could we discuss the pros and cons?"},
				{Text: "Einerseits spart das Zeit, andererseits kostet es mehr.", Translation: "On the one hand it saves time, on the other it costs more."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Contrast two sides with einerseits/andererseits.", Answer: "Einerseits ..., andererseits ...", Kind: "respond"},
				{Prompt: "Die ___ und Nachteile abwägen. (pros)", Answer: "Vor-", Kind: "fill_blank"},
			},
			Tip: "Pair 'einerseits' with 'andererseits' to keep arguments balanced.",
		},
		models.LevelC1: {
			Explanation: "Evaluating impact: 'Wie beurteilen Sie die gesellschaftlichen Auswirkungen?' opens a formal analytic exchange.",
			Examples: []models.Example{
				{Text: "Wie beurteilen Sie die gesellschaftlichen Auswirkungen?", Translation: "How do you assess the societal impact?"},
				{Text: "Das lässt sich differenziert betrachten.", Translation: "That can be viewed in a differentiated way."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Hedge a judgment about social media's impact.", Answer: "Das lässt sich differenziert betrachten ...", Kind: "respond"},
				{Prompt: "Wie ___ Sie die Lage? (assess)", Answer: "beurteilen", Kind: "fill_blank"},
			},
			Tip: "'sich ... lassen' constructions soften strong judgments.",
		},
		models.LevelC2: {
			Explanation: "Academic debate: 'Welche Implikationen ergeben sich aus dieser Analyse?' demands precise, hedged argumentation.",
			Examples: []models.Example{
				{Text: "Welche Implikationen ergeben sich aus dieser Analyse?", Translation: "What implications arise from this analysis?"},
				{Text: "Daraus ließe sich folgern, dass weitere Studien nötig sind.", Translation: "From this one could conclude that further studies are needed."},
			},
			Exercises: []models.Exercise{
				{Prompt: "Draw a cautious conclusion with 'ließe sich folgern'.", Answer: "Daraus ließe sich folgern, dass ...", Kind: "respond"},
				{Prompt: "Welche ___ ergeben sich daraus? (implications)", Answer: "Implikationen", Kind: "fill_blank"},
			},
			Tip: "Konjunktiv II ('ließe sich') keeps academic conclusions tentative.",
		},
	},
}

// RegisterStatic registers the static provider with the registry
func RegisterStatic(registry *ProviderRegistry) {
	registry.Register("static", func(capability models.Capability, config map[string]string) (Provider, error) {
		return NewStaticProvider(capability), nil
	})
}
