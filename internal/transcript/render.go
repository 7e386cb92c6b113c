// Package transcript lays out call transcripts as PDF documents.
package transcript

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/Lllllllleong/callscribe/internal/models"
	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/encoding/charmap"
)

const (
	ContentType = "application/pdf"

	// unicodeFamily is the embedded TrueType family used when a transcript has
	// text outside Windows-1252, which the core Helvetica font cannot encode.
	unicodeFamily = "transcript"
)

func init() {
	// pdfcpu otherwise creates a config dir under the user's home on first use,
	// which is read-only in Cloud Functions.
	api.DisableConfigDir()
}

// ObjectKey is the object store key of a call's transcript. Re-runs for the
// same call overwrite it.
func ObjectKey(callID string) string {
	return fmt.Sprintf("transcriptions/transcription_%s.pdf", callID)
}

// Title is the first line of every transcript.
func Title(callID string) string {
	return fmt.Sprintf("Transcription for Call ID: %s", callID)
}

// Lines returns one "Speaker X: text" line per utterance, in order.
func Lines(utterances []models.Utterance) []string {
	lines := make([]string, 0, len(utterances))
	for _, u := range utterances {
		lines = append(lines, fmt.Sprintf("Speaker %s: %s", u.Speaker, u.Text))
	}
	return lines
}

// Renderer produces Letter-sized transcript PDFs.
type Renderer struct {
	// Compress toggles stream compression. Tests turn it off to inspect the
	// text operators.
	Compress bool
	// UnicodeFont is the TrueType font embedded for non Windows-1252 text.
	// Glyphs it lacks render as blanks. Go Regular covers Latin, Greek and
	// Cyrillic; point it at a wider font (TRANSCRIPT_FONT_PATH) for CJK.
	UnicodeFont []byte
	now         func() time.Time
}

func NewRenderer() *Renderer {
	return &Renderer{Compress: true, UnicodeFont: goregular.TTF, now: time.Now}
}

// needsUnicode reports whether any line has a rune the core fonts cannot
// encode.
func needsUnicode(lines ...string) bool {
	enc := charmap.Windows1252.NewEncoder()
	for _, l := range lines {
		if _, err := enc.String(l); err != nil {
			return true
		}
	}
	return false
}

// bmpOnly replaces runes outside the Basic Multilingual Plane, which fpdf's
// TrueType support rejects, with '?'.
func bmpOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return '?'
		}
		return r
	}, s)
}

// Render lays out the title and the utterances, then checks the result with
// pdfcpu before handing back the bytes.
func (r *Renderer) Render(callID string, utterances []models.Utterance) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(r.Compress)
	pdf.SetTitle(Title(callID), true)
	pdf.SetCreator("callscribe", true)
	if r.now != nil {
		pdf.SetCreationDate(r.now())
	}
	title, lines := Title(callID), Lines(utterances)

	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if len(r.UnicodeFont) > 0 && (needsUnicode(title) || needsUnicode(lines...)) {
		pdf.AddUTF8FontFromBytes(unicodeFamily, "", r.UnicodeFont)
		family = unicodeFamily
		tr = bmpOnly
	}

	pdf.AddPage()
	pdf.SetFont(family, "U", 12)
	pdf.CellFormat(0, 20, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont(family, "", 10)
	for _, line := range lines {
		pdf.MultiCell(0, 14, tr(line), "", "L", false)
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render transcript PDF: %w", err)
	}
	if _, err := Validate(buf.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate runs pdfcpu's relaxed validation and returns the page count.
func Validate(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("rendered PDF failed validation: %w", err)
	}
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}
