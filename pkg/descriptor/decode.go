package descriptor

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNotRepository is returned when a document parses as XML but its root
// element is not a feature repository. Callers must treat this as an
// explicit schema failure, never as an empty repository.
var ErrNotRepository = errors.New("document is not a feature repository")

// Element and attribute names of the published descriptor schema.
const (
	elemRoot       = "features"
	elemRepository = "repository"
	elemFeature    = "feature"
	elemBundle     = "bundle"
	elemConfig     = "config"
	elemConfigFile = "configfile"
	elemDetails    = "details"

	attrName       = "name"
	attrVersion    = "version"
	attrResolver   = "resolver"
	attrStartLevel = "start-level"
	attrStart      = "start"
	attrDependency = "dependency"
	attrFinalName  = "finalname"
)

// Parser decodes repository descriptors. A Parser keeps internal scratch
// state between calls and is therefore not safe for concurrent use; hold
// one per goroutine or pool instances (the repo loader does the latter).
type Parser struct {
	text strings.Builder
}

// NewParser creates a descriptor parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes a repository descriptor from r. It fails if the document is
// not well-formed XML or if the root element is not a repository root
// (ErrNotRepository).
func (p *Parser) Parse(r io.Reader) (*Repository, error) {
	d := xml.NewDecoder(r)

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: document has no root element", ErrNotRepository)
		}
		if err != nil {
			return nil, fmt.Errorf("malformed descriptor: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != elemRoot {
			return nil, fmt.Errorf("%w: root element is <%s>", ErrNotRepository, start.Name.Local)
		}
		return p.parseRepository(d, start)
	}
}

func (p *Parser) parseRepository(d *xml.Decoder, root xml.StartElement) (*Repository, error) {
	repo := &Repository{
		Name: findAttr(root, attrName),
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("malformed descriptor: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case elemRepository:
				ref, err := p.readText(d)
				if err != nil {
					return nil, err
				}
				repo.Entries = append(repo.Entries, Entry{
					Kind:      EntryReference,
					Reference: ref,
				})
			case elemFeature:
				feat, err := p.parseFeature(d, t)
				if err != nil {
					return nil, err
				}
				repo.Entries = append(repo.Entries, Entry{
					Kind:    EntryFeature,
					Feature: feat,
				})
			default:
				if err := d.Skip(); err != nil {
					return nil, fmt.Errorf("malformed descriptor: %w", err)
				}
			}
		case xml.EndElement:
			return repo, nil
		}
	}
}

func (p *Parser) parseFeature(d *xml.Decoder, start xml.StartElement) (*Feature, error) {
	feat := &Feature{
		Name:     findAttr(start, attrName),
		Version:  findAttr(start, attrVersion),
		Resolver: findAttr(start, attrResolver),
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("malformed descriptor: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			entry, err := p.parseContent(d, t)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", feat.Name, err)
			}
			if entry != nil {
				feat.Content = append(feat.Content, *entry)
			}
		case xml.EndElement:
			return feat, nil
		}
	}
}

// parseContent decodes one feature content element. Unknown elements are
// skipped and yield a nil entry.
func (p *Parser) parseContent(d *xml.Decoder, start xml.StartElement) (*Content, error) {
	switch start.Name.Local {
	case elemFeature:
		// A nested feature element names a feature dependency.
		name, err := p.readText(d)
		if err != nil {
			return nil, err
		}
		return &Content{Kind: ContentDependency, Dependency: name}, nil

	case elemBundle:
		b := &Bundle{}
		for _, a := range start.Attr {
			switch a.Name.Local {
			case attrStartLevel:
				level, err := strconv.Atoi(a.Value)
				if err != nil {
					return nil, fmt.Errorf("invalid %s attribute %q: %w", attrStartLevel, a.Value, err)
				}
				b.StartLevel = &level
			case attrStart:
				v, err := strconv.ParseBool(a.Value)
				if err != nil {
					return nil, fmt.Errorf("invalid %s attribute %q: %w", attrStart, a.Value, err)
				}
				b.Start = &v
			case attrDependency:
				v, err := strconv.ParseBool(a.Value)
				if err != nil {
					return nil, fmt.Errorf("invalid %s attribute %q: %w", attrDependency, a.Value, err)
				}
				b.Dependency = &v
			}
		}
		uri, err := p.readText(d)
		if err != nil {
			return nil, err
		}
		b.URI = uri
		return &Content{Kind: ContentBundle, Bundle: b}, nil

	case elemConfig:
		text, err := p.readRawText(d)
		if err != nil {
			return nil, err
		}
		return &Content{Kind: ContentConfig, Config: &Config{
			PID:  findAttr(start, attrName),
			Text: text,
		}}, nil

	case elemConfigFile:
		uri, err := p.readText(d)
		if err != nil {
			return nil, err
		}
		return &Content{Kind: ContentConfigFile, ConfigFile: &ConfigFile{
			SourceURI: uri,
			FinalName: findAttr(start, attrFinalName),
		}}, nil

	case elemDetails:
		text, err := p.readRawText(d)
		if err != nil {
			return nil, err
		}
		return &Content{Kind: ContentDetails, Details: text}, nil

	default:
		if err := d.Skip(); err != nil {
			return nil, fmt.Errorf("malformed descriptor: %w", err)
		}
		return nil, nil
	}
}

// readText reads the character data of the current element up to its end
// tag, with surrounding whitespace trimmed. Nested markup is skipped.
func (p *Parser) readText(d *xml.Decoder) (string, error) {
	raw, err := p.readRawText(d)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// readRawText is readText without trimming; config property payloads keep
// their whitespace intact.
func (p *Parser) readRawText(d *xml.Decoder) (string, error) {
	p.text.Reset()
	for {
		tok, err := d.Token()
		if err != nil {
			return "", fmt.Errorf("malformed descriptor: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			p.text.Write(t)
		case xml.StartElement:
			if err := d.Skip(); err != nil {
				return "", fmt.Errorf("malformed descriptor: %w", err)
			}
		case xml.EndElement:
			return p.text.String(), nil
		}
	}
}

func findAttr(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
