package frontend

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zeebo/blake3"

	"github.com/fern-lang/fernc/internal/module"
)

// Fern is the reference front end for the Fern surface syntax: a declaration
// header (module, import, foreign import, export, reexport) followed by a
// host-language body that is passed through to the generated fragment.
type Fern struct{}

// New creates the reference Fern front end.
func New() *Fern {
	return &Fern{}
}

// header is the parsed declaration header of one source file.
type header struct {
	name      string
	imports   []string
	exports   []string
	reexports []string
	foreigns  []string
	body      string
	bodyLine  int
}

// ParseModules implements Compiler.
func (f *Fern) ParseModules(sources, foreigns []SourceFile) (*module.Graph, hcl.Diagnostics) {
	graph := module.NewGraph()
	var diags hcl.Diagnostics

	for _, src := range sources {
		hdr, hdrDiags := parseHeader(src.Path, src.Text)
		diags = append(diags, hdrDiags...)
		if hdrDiags.HasErrors() {
			continue
		}

		mod := &module.Module{
			Name:       hdr.name,
			Path:       src.Path,
			Imports:    hdr.imports,
			Source:     src.Text,
			SourceHash: hashSource(src.Text),
			FirstParty: src.FirstParty,
		}
		if err := graph.Add(mod); err != nil {
			diags = append(diags, errAt(src.Path, 1, err.Error(), ""))
		}
	}

	for _, src := range foreigns {
		name, line, ok := parseForeignName(src.Text)
		if !ok {
			diags = append(diags, errAt(src.Path, 1,
				"foreign file has no module pairing",
				"The first comment line of a foreign file must be `// module <Name>` naming the module it pairs with."))
			continue
		}
		if !module.ValidName(name) {
			diags = append(diags, errAt(src.Path, line,
				fmt.Sprintf("invalid module name %q in foreign pairing", name), ""))
			continue
		}
		frag := &module.Fragment{Name: name, Kind: module.Foreign, Code: src.Text, Path: src.Path}
		if err := graph.AddForeign(frag); err != nil {
			diags = append(diags, errAt(src.Path, line, err.Error(), ""))
		}
	}

	return graph, diags
}

// Compile implements Compiler. The generated fragment declares every
// cross-module reference as a `require("<Name>")` call; the bundler relies
// on that shape to recover the reference graph from generated code.
func (f *Fern) Compile(ctx context.Context, mod *module.Module, depExterns map[string]*module.Externs) (string, *module.Externs, hcl.Diagnostics) {
	hdr, diags := parseHeader(mod.Path, mod.Source)
	if diags.HasErrors() {
		return "", nil, diags
	}
	// Header warnings were already surfaced when the graph was parsed; only
	// compilation-level diagnostics are new here.
	diags = nil

	// Every exported name must be defined by the body or be a foreign import.
	for _, name := range hdr.exports {
		if !definesName(hdr, name) {
			diags = append(diags, errAt(mod.Path, hdr.bodyLine,
				fmt.Sprintf("exported name %q is not defined in module %s", name, hdr.name), ""))
		}
	}
	if diags.HasErrors() {
		return "", nil, diags
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// Module %s\n\n", hdr.name)
	for _, imp := range hdr.imports {
		fmt.Fprintf(&b, "var %s = require(%q);\n", Alias(imp), imp)
	}
	for _, name := range hdr.foreigns {
		fmt.Fprintf(&b, "var %s = $foreign.%s;\n", name, name)
	}
	if len(hdr.imports) > 0 || len(hdr.foreigns) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(hdr.body)
	if !strings.HasSuffix(hdr.body, "\n") {
		b.WriteString("\n")
	}

	b.WriteString("\nmodule.exports = {};\n")
	for _, name := range hdr.exports {
		fmt.Fprintf(&b, "module.exports.%s = %s;\n", name, name)
	}
	for _, re := range hdr.reexports {
		fmt.Fprintf(&b, "Object.assign(module.exports, require(%q));\n", re)
	}

	// Unused-import notices: advisory only, never abort the build.
	for _, imp := range hdr.imports {
		if isReExported(hdr, imp) {
			continue
		}
		if !strings.Contains(hdr.body, Alias(imp)+".") {
			diags = append(diags, warnAt(mod.Path, 1,
				fmt.Sprintf("module %s imports %s but never references it", hdr.name, imp), ""))
		}
	}

	externs := &module.Externs{
		Module:    hdr.name,
		Exports:   hdr.exports,
		ReExports: hdr.reexports,
		Foreigns:  hdr.foreigns,
	}
	return b.String(), externs, diags
}

// Alias returns the identifier an imported module is bound to inside
// generated code: the qualified name with dots replaced by underscores.
func Alias(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func parseHeader(path, text string) (*header, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	hdr := &header{}
	seenImports := make(map[string]bool)

	lines := strings.Split(text, "\n")
	bodyStart := len(lines)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1

		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		fields := strings.Fields(line)
		switch {
		case fields[0] == "module":
			if hdr.name != "" {
				diags = append(diags, errAt(path, lineNo, "duplicate module declaration", ""))
				continue
			}
			if len(fields) != 2 || !module.ValidName(fields[1]) {
				diags = append(diags, errAt(path, lineNo, "malformed module declaration",
					"Expected `module <Name>` with a dot-separated qualified name."))
				continue
			}
			hdr.name = fields[1]
			continue

		case fields[0] == "import" && len(fields) == 2:
			if !module.ValidName(fields[1]) {
				diags = append(diags, errAt(path, lineNo, fmt.Sprintf("malformed import %q", fields[1]), ""))
				continue
			}
			if seenImports[fields[1]] {
				diags = append(diags, warnAt(path, lineNo, fmt.Sprintf("duplicate import of %s", fields[1]), ""))
				continue
			}
			seenImports[fields[1]] = true
			hdr.imports = append(hdr.imports, fields[1])
			continue

		case fields[0] == "foreign" && len(fields) == 3 && fields[1] == "import":
			hdr.foreigns = append(hdr.foreigns, fields[2])
			continue

		case fields[0] == "export" && len(fields) >= 2:
			rest := strings.TrimSpace(strings.TrimPrefix(line, "export"))
			for _, name := range strings.Split(rest, ",") {
				name = strings.TrimSpace(name)
				if name == "" {
					diags = append(diags, errAt(path, lineNo, "malformed export list", ""))
					continue
				}
				hdr.exports = append(hdr.exports, name)
			}
			continue

		case fields[0] == "reexport" && len(fields) == 2:
			if !seenImports[fields[1]] {
				diags = append(diags, errAt(path, lineNo,
					fmt.Sprintf("reexport of %s requires importing it first", fields[1]), ""))
				continue
			}
			hdr.reexports = append(hdr.reexports, fields[1])
			continue
		}

		// First non-directive line starts the body.
		bodyStart = i
		break
	}

	if hdr.name == "" {
		diags = append(diags, errAt(path, 1, "missing module declaration",
			"A Fern source file must begin with `module <Name>`."))
		return hdr, diags
	}

	hdr.bodyLine = bodyStart + 1
	if bodyStart < len(lines) {
		hdr.body = strings.Join(lines[bodyStart:], "\n")
	}
	return hdr, diags
}

// parseForeignName scans the leading comment lines of a foreign file for the
// `// module <Name>` pairing declaration.
func parseForeignName(text string) (string, int, bool) {
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "//") {
			return "", 0, false
		}
		comment := strings.TrimSpace(strings.TrimPrefix(line, "//"))
		if name, ok := strings.CutPrefix(comment, "module "); ok {
			return strings.TrimSpace(name), i + 1, true
		}
	}
	return "", 0, false
}

func definesName(hdr *header, name string) bool {
	for _, fn := range hdr.foreigns {
		if fn == name {
			return true
		}
	}
	for _, decl := range []string{"function ", "var ", "let ", "const "} {
		if strings.Contains(hdr.body, decl+name) {
			return true
		}
	}
	return false
}

func isReExported(hdr *header, name string) bool {
	for _, re := range hdr.reexports {
		if re == name {
			return true
		}
	}
	return false
}

func hashSource(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func errAt(path string, line int, summary, detail string) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  lineRange(path, line),
	}
}

func warnAt(path string, line int, summary, detail string) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagWarning,
		Summary:  summary,
		Detail:   detail,
		Subject:  lineRange(path, line),
	}
}

func lineRange(path string, line int) *hcl.Range {
	return &hcl.Range{
		Filename: path,
		Start:    hcl.Pos{Line: line, Column: 1},
		End:      hcl.Pos{Line: line, Column: 1},
	}
}
