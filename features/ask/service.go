package ask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ToJen/crypto-news-agent/internal/news"
)

// moderationMarker is the phrase the rewrite model emits when it refuses a
// question. Its presence anywhere in the rewritten query short-circuits the
// pipeline before any retrieval happens.
const moderationMarker = "I cannot help with that request"

const refusalAnswer = "I apologize, but I cannot help with that request. " +
	"Please ask questions related to cryptocurrency news and legitimate market information."

const noArticlesNotice = "No recent crypto news articles available in the database. " +
	"The system is still ingesting news articles. Please try again in a few minutes."

const rewriteSystemPrompt = `You are a helpful AI assistant that helps find relevant crypto news articles.
Given a conversation history and a new question, generate a search query that would help find the most relevant recent crypto news articles.

Focus on the key topics, entities, and concepts mentioned in the conversation.
Return only the search query, nothing else.

IMPORTANT: Only refuse to answer if the question is clearly offensive, abusive, or requests illegal or harmful information.
Questions about eligibility, participation, or regulations are valid and should be answered factually if possible.
For example, if asked 'Who is not allowed to participate in the upcoming ICO?', generate a search query about ICO participation rules.`

const answerSystemPrompt = `You are a helpful AI assistant that answers questions about cryptocurrency news and events.
You have access to recent crypto news articles retrieved from our database.
Use these articles as your primary source of information to answer the user's question.
The chat history is provided only for conversational context, not as a source of news facts.
If the articles contain relevant information, provide a detailed answer based on them.
If the articles don't contain specific information about the question, acknowledge this, but provide any related insights from the available articles.
Do not make up information that is not present in the articles.
Keep the answer concise and informative.

IMPORTANT SAFETY GUIDELINES:
- Do not provide advice on illegal activities, scams, or fraudulent schemes
- Do not promote harmful financial practices or risky investments
- Do not generate content that could be considered offensive, discriminatory, or inappropriate
- If asked about potentially harmful topics, politely redirect to legitimate crypto news and information
- Focus on factual, educational content about cryptocurrency markets and technology

Retrieved News Articles:
%s`

// Embedder converts a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher performs similarity search against the article index.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, limit int) ([]news.Article, error)
}

// ChatModel generates text from a system prompt, prior turns and the current
// question.
type ChatModel interface {
	Complete(ctx context.Context, system string, history []Turn, user string) (string, error)
}

// Result is a fully generated answer with the deduplicated articles it was
// grounded on.
type Result struct {
	Answer  string         `json:"answer"`
	Sources []news.Article `json:"sources"`
}

// Service runs the question answering pipeline: history-aware query rewrite,
// embedding, similarity search and grounded generation.
type Service struct {
	embedder   Embedder
	searcher   Searcher
	chat       ChatModel
	maxResults int
}

func NewService(embedder Embedder, searcher Searcher, chat ChatModel, maxResults int) *Service {
	return &Service{
		embedder:   embedder,
		searcher:   searcher,
		chat:       chat,
		maxResults: maxResults,
	}
}

// AnswerQuestion produces a grounded answer for the question. The rewrite
// step only runs when prior turns exist; a bare question is its own search
// query. Errors carry the stage they happened in.
func (s *Service) AnswerQuestion(ctx context.Context, question string, history []Turn) (Result, error) {
	searchQuery := question
	if len(history) > 0 {
		slog.InfoContext(ctx, "rewriting query from history", "turns", len(history))
		rewritten, err := s.chat.Complete(ctx, rewriteSystemPrompt, history, question)
		if err != nil {
			return Result{}, &PipelineError{Stage: StageRewrite, Err: err}
		}
		if strings.Contains(rewritten, moderationMarker) {
			slog.WarnContext(ctx, "moderation triggered, refusing question")
			return Result{Answer: refusalAnswer, Sources: []news.Article{}}, nil
		}
		searchQuery = rewritten
	}

	embedding, err := s.embedder.Embed(ctx, searchQuery)
	if err != nil {
		return Result{}, &PipelineError{Stage: StageEmbed, Err: err}
	}

	articles, err := s.searcher.Search(ctx, embedding, s.maxResults)
	if err != nil {
		return Result{}, &PipelineError{Stage: StageSearch, Err: err}
	}

	unique := dedupeByURL(articles)
	slog.InfoContext(ctx, "retrieved articles", "found", len(articles), "unique", len(unique))

	system := fmt.Sprintf(answerSystemPrompt, formatContext(unique))
	answer, err := s.chat.Complete(ctx, system, history, question)
	if err != nil {
		return Result{}, &PipelineError{Stage: StageGenerate, Err: err}
	}

	return Result{Answer: answer, Sources: unique}, nil
}

// dedupeByURL keeps the first article for each URL, preserving rank order.
func dedupeByURL(articles []news.Article) []news.Article {
	seen := make(map[string]bool, len(articles))
	unique := make([]news.Article, 0, len(articles))
	for _, a := range articles {
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		unique = append(unique, a)
	}
	return unique
}

// formatContext renders the retrieved articles as a numbered block for the
// answer prompt. An empty list becomes an explicit notice so the model tells
// the user the index is still filling instead of hallucinating.
func formatContext(articles []news.Article) string {
	if len(articles) == 0 {
		return noArticlesNotice
	}

	var b strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a.Title)
		if a.Summary != "" {
			fmt.Fprintf(&b, "   Summary: %s\n", a.Summary)
		}
		fmt.Fprintf(&b, "   Source: %s\n", a.Source)
		fmt.Fprintf(&b, "   Published: %s\n", a.PublishedAt.UTC().Format("2006-01-02 15:04:05")+" UTC")
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
