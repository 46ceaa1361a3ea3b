package ast_test

import "shaderpipe/internal/source"

var spanZero = source.Span{}
