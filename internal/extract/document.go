package extract

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/tkummer/hrfetch/internal/model"
)

// The export follows the XJustiz schema (namespace http://www.xjustiz.de).
// Elements are matched by local name only: exports vary in the prefix they
// bind the namespace to, and some fields live in XML comments rather than
// element text, so matching is done over the parsed tree directly.

// ExtractFields parses one document export into a single document record,
// reading the first match for every field. This is the baseline contract;
// exports bundling several person records go through ExtractAllFields.
func ExtractFields(documentBytes []byte) (model.DocumentRecord, error) {
	root, err := parseDocument(documentBytes)
	if err != nil {
		return model.DocumentRecord{}, err
	}

	rec := sharedFields(root)
	if name := firstAtPath(root, "vollerName"); name != nil {
		rec.GivenName = childText(name, "vorname")
		rec.FamilyName = childText(name, "nachname")
	}
	if birth := firstAtPath(root, "geburtsdatum"); birth != nil {
		rec.BirthDate = elementText(birth)
	}
	return rec, nil
}

// ExtractAllFields is the multi-entity mode: one document record per
// repeated vollerName substructure, with birth dates paired by index.
// Fields that occur once in the export repeat across all records.
func ExtractAllFields(documentBytes []byte) ([]model.DocumentRecord, error) {
	root, err := parseDocument(documentBytes)
	if err != nil {
		return nil, err
	}

	names := allAtPath(root, "vollerName")
	births := allAtPath(root, "geburtsdatum")

	records := make([]model.DocumentRecord, 0, len(names))
	for i, name := range names {
		rec := sharedFields(root)
		rec.GivenName = childText(name, "vorname")
		rec.FamilyName = childText(name, "nachname")
		if i < len(births) {
			rec.BirthDate = elementText(births[i])
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseDocument(documentBytes []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if err := doc.ReadFromBytes(documentBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDocumentParse, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, model.ErrDocumentParse
	}
	return root, nil
}

// sharedFields reads the fields that occur once per export regardless of
// how many person records it bundles.
func sharedFields(root *etree.Element) model.DocumentRecord {
	return model.DocumentRecord{
		Designation:             textAtPath(root, "bezeichnung.aktuell"),
		LegalForm:               annotatedAtPath(root, "angabenZurRechtsform", "rechtsform"),
		Street:                  textAtPath(root, "anschrift", "strasse"),
		HouseNumber:             textAtPath(root, "anschrift", "hausnummer"),
		PostalCode:              textAtPath(root, "anschrift", "postleitzahl"),
		City:                    textAtPath(root, "anschrift", "ort"),
		Sex:                     annotatedAtPath(root, "geschlecht"),
		BusinessPurpose:         textAtPath(root, "basisdatenRegister", "gegenstand"),
		RepresentationAuthority: textAtPath(root, "auswahl_vertretungsbefugnis", "vertretungsbefugnisFreitext"),
	}
}

// firstAtPath finds the first descendant matching a local-name path: the
// first segment matches any descendant, every further segment a direct child.
func firstAtPath(root *etree.Element, path ...string) *etree.Element {
	matches := atPath(root, path, true)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// allAtPath finds every descendant matching a local-name path, in
// document order.
func allAtPath(root *etree.Element, path ...string) []*etree.Element {
	return atPath(root, path, false)
}

func atPath(root *etree.Element, path []string, firstOnly bool) []*etree.Element {
	var matches []*etree.Element
	for _, head := range descendants(root, path[0]) {
		elem := head
		for _, seg := range path[1:] {
			elem = firstChild(elem, seg)
			if elem == nil {
				break
			}
		}
		if elem != nil {
			matches = append(matches, elem)
			if firstOnly {
				return matches
			}
		}
	}
	return matches
}

// descendants collects every element below root whose local tag matches,
// in document order.
func descendants(root *etree.Element, local string) []*etree.Element {
	var found []*etree.Element
	for _, child := range root.ChildElements() {
		if child.Tag == local {
			found = append(found, child)
		}
		found = append(found, descendants(child, local)...)
	}
	return found
}

func firstChild(e *etree.Element, local string) *etree.Element {
	for _, child := range e.ChildElements() {
		if child.Tag == local {
			return child
		}
	}
	return nil
}

// textAtPath returns the trimmed text of the first element at path, or ""
// when the element is absent or empty.
func textAtPath(root *etree.Element, path ...string) string {
	elem := firstAtPath(root, path...)
	if elem == nil {
		return ""
	}
	return elementText(elem)
}

// annotatedAtPath is the two-source lookup for fields the schema encodes
// twice: a coded value as element text and a human-readable codelist label
// as an adjacent comment. The annotation wins when present.
func annotatedAtPath(root *etree.Element, path ...string) string {
	elem := firstAtPath(root, path...)
	if elem == nil {
		return ""
	}
	if comment := firstComment(elem); comment != "" {
		return comment
	}
	return elementText(elem)
}

// firstComment returns the first XML comment that is a direct child of e.
func firstComment(e *etree.Element) string {
	for _, tok := range e.Child {
		if c, ok := tok.(*etree.Comment); ok {
			return strings.TrimSpace(c.Data)
		}
	}
	return ""
}

func childText(e *etree.Element, local string) string {
	child := firstChild(e, local)
	if child == nil {
		return ""
	}
	return elementText(child)
}

func elementText(e *etree.Element) string {
	return strings.TrimSpace(e.Text())
}
