package parser

import (
	"github.com/smeli-lang/smeli-sub000/internal/lexer"
	"github.com/smeli-lang/smeli-sub000/internal/pipeline"
)

type ParserProcessor struct{}

func (pp *ParserProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	p := New(ctx.Tokens, ctx)
	ctx.AstRoot = p.ParseProgram()
	return ctx
}

// Pipeline returns the front-end stages: lexing then parsing.
func Pipeline() *pipeline.Pipeline {
	return pipeline.New(&lexer.LexerProcessor{}, &ParserProcessor{})
}
