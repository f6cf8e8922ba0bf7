package answer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

// Example is a fixed question/answer pair shown to the model before the real question.
type Example struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Template holds the constant parts of the prompt.
type Template struct {
	Persona      string    `yaml:"persona"`
	ContextLabel string    `yaml:"context_label"`
	Examples     []Example `yaml:"examples"`
}

const defaultPersona = "Sahil Lavingia is the founder and CEO of Gumroad, and the author of the book " +
	"The Minimalist Entrepreneur (also known as TME). These are questions and answers by him. " +
	"Please keep your answers to three sentences maximum, and speak in complete sentences. " +
	"Stop speaking once your point is made."

const defaultContextLabel = "Context that may be useful, pulled from The Minimalist Entrepreneur:"

var defaultExamples = []Example{
	{
		Question: "How to choose what business to start?",
		Answer: "First off don't be in a rush. Look around you, see what problems you or other people are facing, " +
			"and solve one of these problems if you see some overlap with your passions or skills. Or, even if you " +
			"don't see an overlap, imagine how you would solve that problem anyway. Start super, super small.",
	},
	{
		Question: "Should we start the business on the side first or should we put full effort right from the start?",
		Answer: "Always on the side. Things start small and get bigger from there, and I don't know if I would ever " +
			"“fully” commit to something unless I had some semblance of customer traction. " +
			"Like with this product I'm working on now!",
	},
	{
		Question: "Should we sell first than build or the other way around?",
		Answer: "I would recommend building first. Building will teach you a lot, and too many people use “sales” " +
			"as an excuse to never learn essential skills like building. You can't sell a house you can't build!",
	},
	{
		Question: "Andrew Chen has a book on this so maybe touché, but how should founders think about the cold " +
			"start problem? Businesses are hard to start, and even harder to sustain but the latter is somewhat " +
			"defined and structured, whereas the former is the vast unknown. Not sure if it's worthy, but this is " +
			"something I have personally struggled with",
		Answer: "Hey, this is about my book, not his! I would solve the problem from a single player perspective " +
			"first. For example, Gumroad is useful to a creator looking to sell something even if no one is " +
			"currently using the platform. Usage helps, but it's not necessary.",
	},
	{
		Question: "What is one business that you think is ripe for a minimalist Entrepreneur innovation that " +
			"isn't currently being pursued by your community?",
		Answer: "I would move to a place outside of a big city and watch how broken, slow, and non-automated most " +
			"things are. And of course the big categories like housing, transportation, toys, healthcare, supply " +
			"chain, food, and more, are constantly being upturned. Go to an industry conference and it's all they " +
			"talk about! Any industry…",
	},
	{
		Question: "How can you tell if your pricing is right? If you are leaving money on the table",
		Answer: "I would work backwards from the kind of success you want, how many customers you think you can " +
			"reasonably get to within a few years, and then reverse engineer how much it should be priced to make " +
			"that work.",
	},
	{
		Question: "Why is the name of your book 'the minimalist entrepreneur' ",
		Answer: "I think more people should start businesses, and was hoping that making it feel more “minimal” " +
			"would make it feel more achievable and lead more people to starting-the hardest step.",
	},
	{
		Question: "How long it takes to write TME",
		Answer:   "About 500 hours over the course of a year or two, including book proposal and outline.",
	},
	{
		Question: "What is the best way to distribute surveys to test my product idea",
		Answer:   "I use Google Forms and my email list / Twitter account. Works great and is 100% free.",
	},
	{
		Question: "How do you know, when to quit",
		Answer: "When I'm bored, no longer learning, not earning enough, getting physically unhealthy, etc… loads " +
			"of reasons. I think the default should be to “quit” and work on something new. Few things are worth " +
			"holding your attention for a long period of time.",
	},
}

// DefaultTemplate returns the prompt used for The Minimalist Entrepreneur.
func DefaultTemplate() Template {
	examples := make([]Example, len(defaultExamples))
	copy(examples, defaultExamples)
	return Template{
		Persona:      defaultPersona,
		ContextLabel: defaultContextLabel,
		Examples:     examples,
	}
}

// LoadTemplate reads a YAML template override. Fields left empty keep
// their default values.
func LoadTemplate(path string) (Template, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Template{}, fmt.Errorf("read prompt template: %w", err)
	}
	return ParseTemplate(data)
}

// ParseTemplate decodes a YAML template over the defaults.
func ParseTemplate(data []byte) (Template, error) {
	t := DefaultTemplate()
	var override Template
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Template{}, fmt.Errorf("parse prompt template: %w", err)
	}
	if override.Persona != "" {
		t.Persona = override.Persona
	}
	if override.ContextLabel != "" {
		t.ContextLabel = override.ContextLabel
	}
	if override.Examples != nil {
		t.Examples = override.Examples
	}
	return t, nil
}

// Build renders the prompt. Only the context and question vary between
// calls; the result always ends with "A: " so the completion is the answer.
func (t Template) Build(question string, ctx domain.AssembledContext) domain.Prompt {
	var b strings.Builder
	b.WriteString(t.Persona)
	b.WriteString("\n\n")
	b.WriteString(t.ContextLabel)
	b.WriteString("\n")
	b.WriteString(ctx.Text)

	for _, ex := range t.Examples {
		writeExchange(&b, ex.Question, ex.Answer)
	}
	writeExchange(&b, question, "")

	return domain.Prompt{Text: b.String()}
}

func writeExchange(b *strings.Builder, q, a string) {
	b.WriteString("\n\n\nQ: ")
	b.WriteString(q)
	b.WriteString("\n\nA: ")
	b.WriteString(a)
}
