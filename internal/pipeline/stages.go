package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/medkb/kbgen/internal/article"
	"github.com/medkb/kbgen/internal/condition"
	"github.com/medkb/kbgen/internal/llm"
	"github.com/medkb/kbgen/internal/local"
	"github.com/medkb/kbgen/internal/paper"
)

// Stage names, in pipeline order. The local-integration stage is the only
// optional one: it runs only when the relevance index has documents for
// the condition.
const (
	StageOutlined  = "outlined"
	StageLocal     = "local-integrated"
	StageQueries   = "queries-generated"
	StagePapers    = "papers-integrated"
	StageFinalized = "finalized"
)

// generateOutline produces the initial article outline for a condition and
// checks it carries every required heading.
func (p *Pipeline) generateOutline(ctx context.Context, topic string) (*article.Outline, error) {
	var outline article.Outline
	prompt := llm.OutlinePrompt(topic, article.RequiredHeadings)
	if err := p.model.GenerateJSON(ctx, StageOutlined, prompt, &outline); err != nil {
		return nil, err
	}
	if err := article.ValidateOutline(&outline); err != nil {
		return nil, err
	}
	for _, h := range article.RequiredHeadings {
		if outline.Section(h) == nil {
			return nil, fmt.Errorf("%w: outline missing required section %q", article.ErrIntegrity, h)
		}
	}
	return &outline, nil
}

// integrateLocal refines the outline against the local-knowledge corpus.
// It reports skipped=true when the relevance index has nothing for the
// condition, in which case the outline is returned unchanged.
func (p *Pipeline) integrateLocal(ctx context.Context, cond condition.Condition, outline *article.Outline) (*article.Outline, bool, error) {
	docs := local.TopDocs(p.relevance.Docs(cond.Name), p.topDocs)
	if len(docs) == 0 {
		return outline, true, nil
	}

	text := local.ReadSources(docs, p.logger)
	if text == "" {
		p.logger.Warn("local documents present but unreadable, skipping stage",
			zap.String("condition", cond.Name))
		return outline, true, nil
	}

	outlineJSON, err := json.Marshal(outline)
	if err != nil {
		return nil, false, fmt.Errorf("encoding outline: %w", err)
	}

	var refined article.Outline
	prompt := llm.RefinePrompt(cond.Name, string(outlineJSON), []string{text})
	if err := p.model.GenerateJSON(ctx, StageLocal, prompt, &refined); err != nil {
		return nil, false, err
	}
	if err := article.ValidateOutline(&refined); err != nil {
		return nil, false, err
	}
	return &refined, false, nil
}

// generateQueries asks the model for section-targeted search queries.
func (p *Pipeline) generateQueries(ctx context.Context, outline *article.Outline) ([]paper.SearchQuery, error) {
	outlineJSON, err := json.Marshal(outline)
	if err != nil {
		return nil, fmt.Errorf("encoding outline: %w", err)
	}

	var queries []paper.SearchQuery
	if err := p.model.GenerateJSON(ctx, StageQueries, llm.QueryPrompt(string(outlineJSON)), &queries); err != nil {
		return nil, err
	}

	// Drop blank queries rather than sending them to the services.
	kept := queries[:0]
	for _, q := range queries {
		if strings.TrimSpace(q.Query) != "" {
			kept = append(kept, q)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: model produced no usable search queries", article.ErrIntegrity)
	}
	return kept, nil
}

// integrationPaper is the shape each record takes in the integration
// prompt: the fixed provisional reference number plus the metadata the
// model needs to judge relevance.
type integrationPaper struct {
	Ref      int    `json:"ref"`
	Section  string `json:"section,omitempty"`
	Query    string `json:"query,omitempty"`
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`
	Citation string `json:"citation"`
}

// integratePapers hands the retrieved records to the model under fixed
// provisional reference numbers and returns the refined outline together
// with the number-to-record attachments the resolver needs.
func (p *Pipeline) integratePapers(ctx context.Context, topic string, outline *article.Outline, records []paper.Record) (*article.Outline, map[int]paper.Record, error) {
	attached := make(map[int]paper.Record, len(records))
	papers := make([]integrationPaper, 0, len(records))
	for i, rec := range records {
		n := i + 1
		attached[n] = rec
		papers = append(papers, integrationPaper{
			Ref:      n,
			Section:  rec.Section,
			Query:    rec.Query,
			Title:    rec.Title,
			Abstract: rec.Abstract,
			Citation: formatCitation(rec),
		})
	}

	outlineJSON, err := json.Marshal(outline)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding outline: %w", err)
	}
	papersJSON, err := json.Marshal(papers)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding papers: %w", err)
	}

	var integrated article.Outline
	prompt := llm.IntegratePrompt(topic, string(outlineJSON), string(papersJSON))
	if err := p.model.GenerateJSON(ctx, StagePapers, prompt, &integrated); err != nil {
		return nil, nil, err
	}
	if err := article.ValidateOutline(&integrated); err != nil {
		return nil, nil, err
	}
	return &integrated, attached, nil
}

// formatCitation renders one record as the citation string shown to the
// model.
func formatCitation(rec paper.Record) string {
	var b strings.Builder
	if a := paper.FormatAuthors(rec.Authors); a != "" {
		b.WriteString(a)
	}
	if rec.Year > 0 {
		fmt.Fprintf(&b, " (%d)", rec.Year)
	}
	if b.Len() > 0 {
		b.WriteString(". ")
	}
	b.WriteString(rec.Title)
	if rec.Venue != "" {
		b.WriteString(". ")
		b.WriteString(rec.Venue)
	}
	if rec.URL != "" {
		b.WriteString(". ")
		b.WriteString(rec.URL)
	}
	return b.String()
}
