package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Resolution (semantic side-table construction)
	SemaInfo                    Code = 3000
	SemaError                   Code = 3001
	SemaDuplicateSymbol         Code = 3002
	SemaUnresolvedSymbol        Code = 3003
	SemaWrongSymbolKind         Code = 3004
	SemaTypeMismatch            Code = 3005
	SemaArgumentCount           Code = 3006
	SemaAssignImmutable         Code = 3007
	SemaRecursion               Code = 3008
	SemaUnknownMember           Code = 3009
	SemaInvalidIndex            Code = 3010
	SemaWorkgroupOutsideCompute Code = 3011
	SemaNonUniformBarrier       Code = 3012
	SemaInvalidEntryPoint       Code = 3013
	SemaSharedNode              Code = 3014
	SemaMisplacedStatement      Code = 3015
	SemaInvalidType             Code = 3016

	// Lowering passes
	LowInfo               Code = 4000
	LowUnresolvedSize     Code = 4001
	LowOverrideArraySize  Code = 4002
	LowEntryPointNotFound Code = 4003
	LowPatternDeclined    Code = 4004
	LowMissingEntryPoints Code = 4005
	LowUnknownPass        Code = 4006

	// Configuration
	CfgInvalid     Code = 5001
	CfgUnknownPass Code = 5002

	// Input / output
	IOReadFailure   Code = 6001
	IODecodeFailure Code = 6002

	// Internal compiler errors
	InternalError           Code = 9000
	InternalUnreachableEdit Code = 9001
	InternalInvalidRewrite  Code = 9002
	InternalPassPanic       Code = 9003
)

var codeDescription = map[Code]string{
	UnknownCode:                 "Unknown error",
	SemaInfo:                    "Semantic information",
	SemaError:                   "Semantic error",
	SemaDuplicateSymbol:         "Duplicate symbol declaration",
	SemaUnresolvedSymbol:        "Unresolved symbol",
	SemaWrongSymbolKind:         "Symbol used as the wrong kind of entity",
	SemaTypeMismatch:            "Type mismatch",
	SemaArgumentCount:           "Wrong number of arguments",
	SemaAssignImmutable:         "Assignment to immutable binding",
	SemaRecursion:               "Recursive call",
	SemaUnknownMember:           "Unknown member",
	SemaInvalidIndex:            "Invalid index expression",
	SemaWorkgroupOutsideCompute: "Workgroup variable used outside a compute entry point",
	SemaNonUniformBarrier:       "Barrier in non-uniform control flow",
	SemaInvalidEntryPoint:       "Invalid entry point",
	SemaSharedNode:              "Node appears twice in the tree",
	SemaMisplacedStatement:      "Statement not allowed here",
	SemaInvalidType:             "Invalid type",
	LowInfo:                     "Lowering information",
	LowUnresolvedSize:           "Workgroup size is not resolvable at this stage",
	LowOverrideArraySize:        "Array size is an unresolved override expression",
	LowEntryPointNotFound:       "Entry point not found",
	LowPatternDeclined:          "Construct left unchanged",
	LowMissingEntryPoints:       "Program has no entry points",
	LowUnknownPass:              "Unknown pass",
	CfgInvalid:                  "Invalid configuration",
	CfgUnknownPass:              "Unknown pass in configuration",
	IOReadFailure:               "Read failure",
	IODecodeFailure:             "Decode failure",
	InternalError:               "Internal compiler error",
	InternalUnreachableEdit:     "Rewrite target not reachable",
	InternalInvalidRewrite:      "Rewritten program failed resolution",
	InternalPassPanic:           "Pass panicked",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SEM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("LOW%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("CFG%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 9000 && ic < 10000:
		return fmt.Sprintf("ICE%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

// IsInternal reports whether the code belongs to the internal-error range.
func (c Code) IsInternal() bool {
	return c >= 9000 && c < 10000
}
