package lexer

import (
	"github.com/smeli-lang/smeli-sub000/internal/pipeline"
)

type LexerProcessor struct{}

// Process tokenizes from ctx.StartOffset. Illegal tokens are not reported
// here; the parser reports them when it reaches one, so characters after the
// first malformed statement stay silent.
func (lp *LexerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	ctx.Tokens = NewAt(ctx.SourceCode, ctx.StartOffset).Tokenize()
	return ctx
}
