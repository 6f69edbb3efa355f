package pub

import (
	"fmt"
	"io"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"

	"ereader/rerror"
)

// readSettings is the shared etree.ReadSettings used for every small,
// fully-bufferable XML document pub parses (container.xml, the package
// document, NCX, Nav). Large chapter bodies go through section's streaming
// lexer instead; these documents are small enough to DOM-parse whole.
func readSettings() etree.ReadSettings {
	return etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		ValidateInput: false,
		Permissive:    true,
	}
}

func readXML(r io.Reader) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = readSettings()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, err
	}
	return doc, nil
}

// rootfilePath extracts the first rootfile's full-path attribute from
// META-INF/container.xml.
func rootfilePath(r io.Reader, archivePath string) (string, error) {
	doc, err := readXML(r)
	if err != nil {
		return "", rerror.New(rerror.NotAnEpub, "pub.rootfilePath", archivePath, err)
	}
	container := doc.SelectElement("container")
	if container == nil {
		return "", rerror.New(rerror.NotAnEpub, "pub.rootfilePath", archivePath, fmt.Errorf("missing <container> root"))
	}
	rootfiles := container.FindElement("rootfiles")
	if rootfiles == nil {
		return "", rerror.New(rerror.NotAnEpub, "pub.rootfilePath", archivePath, fmt.Errorf("missing <rootfiles>"))
	}
	for _, rf := range rootfiles.ChildElements() {
		if rf.Tag != "rootfile" {
			continue
		}
		full := rf.SelectAttrValue("full-path", "")
		if full != "" {
			return full, nil
		}
	}
	return "", rerror.New(rerror.NotAnEpub, "pub.rootfilePath", archivePath, fmt.Errorf("no rootfile with a full-path attribute"))
}
