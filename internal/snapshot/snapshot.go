// Package snapshot is the msgpack interchange format for compilation units:
// the parser hands units to the pipeline in this form and the lowered result
// is handed on to the code generator the same way.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/source"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// Current schema version - increment when the payload format changes.
const schemaVersion uint16 = 1

// Unit is one compilation unit together with the tables its IDs index.
// Files may be nil when the producer shipped spans only.
type Unit struct {
	Name    string
	Files   *source.FileSet
	Program *ast.Program
	Symbols *symbols.Table
	Types   *types.Interner
}

// FromProgram wraps a resolved program for encoding.
func FromProgram(name string, files *source.FileSet, p *sema.Program) *Unit {
	return &Unit{Name: name, Files: files, Program: p.AST, Symbols: p.Symbols, Types: p.Types}
}

type fileRecord struct {
	Path    string
	Content []byte `msgpack:",omitempty"`
}

type payload struct {
	Schema            uint16
	Name              string
	Files             []fileRecord `msgpack:",omitempty"`
	Symbols           []symbols.Symbol
	Types             types.Export
	DisableUniformity bool `msgpack:",omitempty"`
	Decls             []*wireDecl
}

// Encode writes u to w.
func Encode(w io.Writer, u *Unit) error {
	if u == nil || u.Program == nil || u.Symbols == nil || u.Types == nil {
		return errors.New("snapshot: incomplete unit")
	}
	p := payload{
		Schema:            schemaVersion,
		Name:              u.Name,
		Symbols:           u.Symbols.Data(),
		Types:             u.Types.Export(),
		DisableUniformity: u.Program.DisableUniformity,
		Decls:             make([]*wireDecl, 0, len(u.Program.Decls)),
	}
	for _, f := range u.Files.Files() {
		p.Files = append(p.Files, fileRecord{Path: f.Path, Content: f.Content})
	}
	for _, d := range u.Program.Decls {
		wd, err := encodeDecl(d)
		if err != nil {
			return err
		}
		p.Decls = append(p.Decls, wd)
	}
	return msgpack.NewEncoder(w).Encode(&p)
}

// Marshal encodes u into a byte slice.
func Marshal(u *Unit) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, u); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads one unit from r. Malformed input is reported as an
// IODecodeFailure diagnostic error.
func Decode(r io.Reader) (*Unit, error) {
	var p payload
	if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
		return nil, decodeErr(err, "malformed snapshot")
	}
	if p.Schema != schemaVersion {
		return nil, decodeErr(nil, "snapshot schema %d, want %d", p.Schema, schemaVersion)
	}
	tys, err := types.Import(p.Types)
	if err != nil {
		return nil, decodeErr(err, "type table")
	}
	u := &Unit{
		Name:    p.Name,
		Symbols: symbols.Restore(p.Symbols),
		Types:   tys,
		Program: &ast.Program{DisableUniformity: p.DisableUniformity},
	}
	if len(p.Files) > 0 {
		u.Files = source.NewFileSet()
		for _, f := range p.Files {
			u.Files.Add(f.Path, f.Content, source.FileVirtual)
		}
	}
	dec, err := newDecoder(u.Symbols, u.Types)
	if err != nil {
		return nil, decodeErr(err, "symbol table")
	}
	for i, wd := range p.Decls {
		d, err := dec.decl(wd)
		if err != nil {
			return nil, decodeErr(err, "declaration %d", i)
		}
		u.Program.Decls = append(u.Program.Decls, d)
	}
	return u, nil
}

// Unmarshal decodes a unit from data.
func Unmarshal(data []byte) (*Unit, error) {
	return Decode(bytes.NewReader(data))
}

func decodeErr(cause error, format string, args ...any) error {
	e := diag.Errorf(diag.IODecodeFailure, source.Span{}, format, args...)
	if cause != nil {
		return e.Wrap(cause)
	}
	return e
}

// ReadFile decodes the unit stored at path.
func ReadFile(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Errorf(diag.IOReadFailure, source.Span{}, "read %s", path).Wrap(err)
	}
	u, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// WriteFile encodes u to path, replacing it atomically.
func WriteFile(path string, u *Unit) error {
	data, err := Marshal(u)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
