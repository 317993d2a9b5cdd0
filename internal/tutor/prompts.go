package tutor

import (
	"strings"

	"github.com/yungbote/blockbridge-backend/internal/llm"
)

// The audience is 8 to 12 year olds reading over a teacher's shoulder:
// short sentences, no jargon, one concrete idea at a time. Block names are
// injected in UPPERCASE so replies mention them verbatim and ExtractBlocks
// can find them in parentheses afterwards.

const suggestionSystem = `You are a friendly coding mentor helping kids aged 8 to 12 who build micro:bit programs from physical blocks.

Rules:
- Be warm and specific. Praise what the program actually does, never generic "good job".
- Suggest exactly ONE small next step the student can build by adding or swapping blocks.
- The idea must use exactly one TRIGGER block and one or two ACTION blocks from the lists you are given.
- Write every block name in parentheses exactly as it appears in the lists, like (ON BUTTON A).
- One sentence of encouragement, one "What if..." sentence for the idea. No code, no block syntax.`

const encouragementSystem = `You are a cheerful coding mentor for kids aged 8 to 12. Read the student's micro:bit program and reply with ONE short encouraging sentence (under 20 words) about something specific it does. Plain text only, no lists, no code.`

const ideaSystem = `You are a playful coding mentor for kids aged 8 to 12 who build micro:bit programs from physical blocks. Suggest ONE small, exciting next step as a single "What if..." sentence. Use exactly one TRIGGER block and one or two ACTION blocks from the lists you are given, and write each block name in parentheses exactly as listed, like (ON SHAKE). No code, no extra sentences.`

const chatSystemBase = `You are a patient coding mentor chatting with a kid aged 8 to 12 about their micro:bit block program. Answer in two or three short sentences. Explain ideas with everyday words. If they ask what a block does, describe what happens on the micro:bit, not the code. Never write program code.`

func suggestionSchema() *llm.JSONSchema {
	return &llm.JSONSchema{
		Name: "tutor_suggestion",
		Schema: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"encouragement": map[string]any{
					"type":        "string",
					"description": "One short sentence praising something specific the student did.",
				},
				"idea": map[string]any{
					"type":        "string",
					"description": "One 'What if...' sentence naming each suggested block in parentheses.",
				},
			},
			"required": []string{"encouragement", "idea"},
		},
		Strict: true,
	}
}

func programContext(triggers, actions []string, code string) string {
	var b strings.Builder
	b.WriteString("The student's program:\n\n")
	b.WriteString(strings.TrimRight(code, "\n"))
	b.WriteString("\n\nTRIGGER blocks: ")
	b.WriteString(strings.Join(triggers, ", "))
	b.WriteString("\nACTION blocks: ")
	b.WriteString(strings.Join(actions, ", "))
	return b.String()
}

func suggestionMessages(triggers, actions []string, code string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: suggestionSystem},
		{Role: "user", Content: programContext(triggers, actions, code)},
	}
}

// fixMessage is appended for the corrective retry after a reply mentioned
// blocks that do not exist or the wrong mix of them.
func fixMessage() llm.Message {
	return llm.Message{
		Role: "user",
		Content: "Your idea did not follow the rules. Reply again with the same JSON shape, " +
			"using exactly one TRIGGER block and one or two ACTION blocks from the lists, " +
			"each written in parentheses exactly as listed.",
	}
}

func encouragementMessages(code string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: encouragementSystem},
		{Role: "user", Content: "The student's program:\n\n" + strings.TrimRight(code, "\n")},
	}
}

func ideaMessages(triggers, actions []string, code string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: ideaSystem},
		{Role: "user", Content: programContext(triggers, actions, code)},
	}
}

// maxChatHistory bounds the prompt: older turns are dropped, newest kept.
const maxChatHistory = 16

func chatMessages(code string, history []llm.Message) []llm.Message {
	sys := chatSystemBase
	if strings.TrimSpace(code) != "" {
		sys += "\n\nThe student's current program:\n\n" + strings.TrimRight(code, "\n")
	}
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: "system", Content: sys})
	msgs = append(msgs, history...)
	return msgs
}
