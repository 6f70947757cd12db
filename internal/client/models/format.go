package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Format is a conversion target.
type Format string

const (
	FormatDOCX Format = "DOCX"
	FormatPPTX Format = "PPTX"
	FormatJPG  Format = "JPG"
	FormatTXT  Format = "TXT"
	FormatEPUB Format = "EPUB"
	FormatXLSX Format = "XLSX"
)

const (
	DefaultFormat     = FormatDOCX
	DefaultJPGQuality = 80
)

// Formats lists the supported targets in menu order.
var Formats = []Format{FormatDOCX, FormatPPTX, FormatJPG, FormatTXT, FormatEPUB, FormatXLSX}

var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat accepts any casing of a supported format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Ready reports whether the backend converts f in production. The rest are
// offered as "coming soon".
func (f Format) Ready() bool {
	return f == FormatDOCX
}

func (f Format) SupportsOCR() bool {
	return f == FormatDOCX || f == FormatTXT
}

func (f Format) SupportsQuality() bool {
	return f == FormatJPG
}

// Wire is the lower-case spelling sent to the API.
func (f Format) Wire() string {
	return strings.ToLower(string(f))
}

// Extension of downloaded results.
func (f Format) Extension() string {
	return "." + f.Wire()
}

// ConversionOptions are the per-item conversion settings.
type ConversionOptions struct {
	TargetFormat Format
	OCR          *bool
	Quality      *int
	PageRange    *string
}

func DefaultOptions() ConversionOptions {
	return ConversionOptions{TargetFormat: DefaultFormat}
}

// OptionsPatch is a partial update; nil fields are left alone.
type OptionsPatch struct {
	TargetFormat *Format
	OCR          *bool
	Quality      *int
	PageRange    *string
}

// Merge returns o with every non-nil field of p applied.
func (o ConversionOptions) Merge(p OptionsPatch) ConversionOptions {
	out := o.Clone()
	if p.TargetFormat != nil {
		out.TargetFormat = *p.TargetFormat
	}
	if p.OCR != nil {
		v := *p.OCR
		out.OCR = &v
	}
	if p.Quality != nil {
		v := *p.Quality
		out.Quality = &v
	}
	if p.PageRange != nil {
		v := *p.PageRange
		out.PageRange = &v
	}
	return out
}

func (o ConversionOptions) Clone() ConversionOptions {
	out := ConversionOptions{TargetFormat: o.TargetFormat}
	if o.OCR != nil {
		v := *o.OCR
		out.OCR = &v
	}
	if o.Quality != nil {
		v := *o.Quality
		out.Quality = &v
	}
	if o.PageRange != nil {
		v := *o.PageRange
		out.PageRange = &v
	}
	return out
}

var (
	ErrQualityRange  = errors.New("quality must be between 1 and 100")
	ErrPageRange     = errors.New("page range must look like 1-3,5")
	ErrOptionsFormat = errors.New("option not supported by format")
)

// Validate checks o the way the options dialog does. The queue itself
// stores whatever it is given.
func (o ConversionOptions) Validate() error {
	if _, err := ParseFormat(string(o.TargetFormat)); err != nil {
		return err
	}
	if o.OCR != nil && *o.OCR && !o.TargetFormat.SupportsOCR() {
		return fmt.Errorf("%w: ocr with %s", ErrOptionsFormat, o.TargetFormat)
	}
	if o.Quality != nil {
		if !o.TargetFormat.SupportsQuality() {
			return fmt.Errorf("%w: quality with %s", ErrOptionsFormat, o.TargetFormat)
		}
		if *o.Quality < 1 || *o.Quality > 100 {
			return ErrQualityRange
		}
	}
	if o.PageRange != nil && *o.PageRange != "" {
		if err := ValidatePageRange(*o.PageRange); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePageRange accepts comma separated pages and ascending ranges,
// e.g. "1-3,5,8-9".
func ValidatePageRange(s string) error {
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || from < 1 {
			return ErrPageRange
		}
		if !isRange {
			continue
		}
		to, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || to < from {
			return ErrPageRange
		}
	}
	return nil
}
