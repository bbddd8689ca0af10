// Package docs parses navigation documents (AGENTS.md, CLAUDE.md) so
// their sections can be chunked and indexed like any other source
// file, giving an assistant a map of a repository's entry points and
// key patterns instead of only its symbols.
package docs

import (
	"regexp"
	"strings"
)

// NavDoc is a parsed navigation document.
type NavDoc struct {
	Path             string
	Repository       string
	Module           string
	Title            string
	Description      string
	EntryPoints      []string
	MentionedSymbols []string
	MentionedFiles   []string
	Sections         []Section
}

// Section is one heading-delimited slice of a NavDoc.
type Section struct {
	Heading     string
	HeadingPath string // Full path: "Key Patterns > Import Pattern"
	Level       int
	Content     string
	StartLine   int
	EndLine     int
}

// IsNavDoc reports whether relativePath names a navigation document
// this package knows how to parse, by base filename rather than
// extension since AGENTS.md/CLAUDE.md are conventionally named.
func IsNavDoc(relativePath string) bool {
	base := relativePath
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	switch strings.ToUpper(base) {
	case "AGENTS.MD", "CLAUDE.MD":
		return true
	default:
		return false
	}
}

var (
	headingRe    = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
)

// ParseNavDoc parses the content of an AGENTS.md/CLAUDE.md file into
// its headings, sections, and the entry points/symbols/files it
// mentions in inline code spans.
func ParseNavDoc(content []byte, filePath, repository string) (*NavDoc, error) {
	text := string(content)
	lines := strings.Split(text, "\n")

	doc := &NavDoc{
		Path:       filePath,
		Repository: repository,
	}

	if parts := strings.SplitN(filePath, "/", 2); len(parts) > 1 {
		doc.Module = parts[0]
	}

	var currentSection *Section
	var headingStack []string
	justSawH1 := false

	for i, line := range lines {
		if matches := headingRe.FindStringSubmatch(line); matches != nil {
			level := len(matches[1])
			heading := matches[2]

			for len(headingStack) >= level {
				headingStack = headingStack[:len(headingStack)-1]
			}
			headingStack = append(headingStack, heading)

			if currentSection != nil {
				currentSection.EndLine = i
				doc.Sections = append(doc.Sections, *currentSection)
			}

			currentSection = &Section{
				Heading:     heading,
				HeadingPath: strings.Join(headingStack, " > "),
				Level:       level,
				StartLine:   i + 1,
			}

			if level == 1 && doc.Title == "" {
				doc.Title = heading
				justSawH1 = true
			}
			continue
		}

		if justSawH1 && strings.TrimSpace(line) != "" {
			doc.Description = strings.TrimSpace(line)
			justSawH1 = false
		}

		if currentSection != nil {
			currentSection.Content += line + "\n"
		}

		isEntrySection := currentSection != nil && strings.Contains(strings.ToLower(currentSection.Heading), "entry")
		if isEntrySection || strings.Contains(strings.ToLower(line), "entry point") {
			for _, match := range inlineCodeRe.FindAllStringSubmatch(line, -1) {
				if isFilePath(match[1]) {
					doc.EntryPoints = append(doc.EntryPoints, match[1])
				}
			}
		}

		for _, match := range inlineCodeRe.FindAllStringSubmatch(line, -1) {
			code := match[1]
			switch {
			case isFilePath(code):
				doc.MentionedFiles = append(doc.MentionedFiles, code)
			case isSymbol(code):
				doc.MentionedSymbols = append(doc.MentionedSymbols, code)
			}
		}
	}

	if currentSection != nil {
		currentSection.EndLine = len(lines)
		doc.Sections = append(doc.Sections, *currentSection)
	}

	return doc, nil
}

func isFilePath(s string) bool {
	return strings.Contains(s, "/") ||
		strings.HasSuffix(s, ".py") ||
		strings.HasSuffix(s, ".js") ||
		strings.HasSuffix(s, ".ts") ||
		strings.HasSuffix(s, ".go") ||
		strings.HasSuffix(s, ".tsx") ||
		strings.HasSuffix(s, ".jsx")
}

func isSymbol(s string) bool {
	if strings.Contains(s, "/") {
		return false
	}

	pascalCase := regexp.MustCompile(`^[A-Z][a-zA-Z0-9]+$`)
	if pascalCase.MatchString(s) {
		return true
	}

	snakeCase := regexp.MustCompile(`^[a-z_][a-z0-9_]+$`)
	return snakeCase.MatchString(s)
}
