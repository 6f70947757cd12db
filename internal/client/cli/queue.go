package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dmitrijs2005/pdfconv/internal/filex"
)

var (
	errNoSuchItem    = errors.New("no queue item matches")
	errAmbiguousItem = errors.New("more than one queue item matches")
)

// describeFile is a test seam for filex.Describe.
var describeFile = filex.Describe

// resolveItem finds the queue item whose id is ref or starts with it.
func (a *App) resolveItem(ref string) (models.QueueItem, error) {
	var found []models.QueueItem
	for _, it := range a.store.Items() {
		if it.ID == ref {
			return it, nil
		}
		if strings.HasPrefix(it.ID, ref) {
			found = append(found, it)
		}
	}
	switch len(found) {
	case 0:
		return models.QueueItem{}, fmt.Errorf("%w %q", errNoSuchItem, ref)
	case 1:
		return found[0], nil
	}
	return models.QueueItem{}, fmt.Errorf("%w %q", errAmbiguousItem, ref)
}

// Add queues the PDF files at the given paths. Other files are reported
// and skipped.
func (a *App) Add(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("add <paths...>")
	}

	files := make([]models.LocalFile, 0, len(args))
	for _, path := range args {
		info, err := describeFile(path)
		if err != nil {
			printlnFn("Skipping:", err)
			continue
		}
		f := models.FileFromInfo(info)
		if !f.IsPDF() {
			printlnFn(fmt.Sprintf("Skipping %s: not a PDF (%s)", f.Name, f.ContentType))
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil
	}

	ids, err := a.store.AddFiles(ctx, files)
	if len(ids) > 0 {
		printlnFn(fmt.Sprintf("Added %d file(s)", len(ids)))
	}
	return err
}

func (a *App) List(ctx context.Context, args []string) error {
	items := a.store.Items()
	if len(items) == 0 {
		printlnFn("The queue is empty")
		return nil
	}
	printlnFn(renderQueue(items))
	return nil
}

func (a *App) Remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("remove <id>")
	}
	it, err := a.resolveItem(args[0])
	if err != nil {
		return err
	}
	a.store.RemoveFile(it.ID)
	printlnFn("Removed", it.File.Name)
	return nil
}

// Move puts the item at the position of another one.
func (a *App) Move(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("move <id> <overId>")
	}
	active, err := a.resolveItem(args[0])
	if err != nil {
		return err
	}
	over, err := a.resolveItem(args[1])
	if err != nil {
		return err
	}
	a.store.ReorderFiles(active.ID, over.ID)
	return nil
}

func (a *App) Format(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("format <id> <" + strings.Join(formatNames(), "|") + ">")
	}
	it, err := a.resolveItem(args[0])
	if err != nil {
		return err
	}
	f, err := models.ParseFormat(args[1])
	if err != nil {
		return err
	}
	if err := a.store.UpdateFileFormat(it.ID, f); err != nil {
		return err
	}
	if !f.Ready() {
		printlnFn(fmt.Sprintf("Note: %s conversion is coming soon and may fail", f))
	}
	return nil
}

func formatNames() []string {
	out := make([]string, len(models.Formats))
	for i, f := range models.Formats {
		out[i] = string(f)
	}
	return out
}

// Options applies key=value settings to one item. The merged options are
// validated before the store sees them.
func (a *App) Options(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("options <id> [format=..] [ocr=on|off] [quality=1-100] [pages=1-3,5]")
	}
	it, err := a.resolveItem(args[0])
	if err != nil {
		return err
	}
	patch, err := parseOptions(args[1:])
	if err != nil {
		return err
	}
	if err := it.Options.Merge(patch).Validate(); err != nil {
		return err
	}
	return a.store.UpdateFileOptions(it.ID, patch)
}

func parseOptions(args []string) (models.OptionsPatch, error) {
	var p models.OptionsPatch
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			return p, fmt.Errorf("option %q: want key=value", arg)
		}
		switch strings.ToLower(key) {
		case "format":
			f, err := models.ParseFormat(val)
			if err != nil {
				return p, err
			}
			p.TargetFormat = &f
		case "ocr":
			on, err := parseSwitch(val)
			if err != nil {
				return p, fmt.Errorf("ocr: %w", err)
			}
			p.OCR = &on
		case "quality":
			q, err := strconv.Atoi(val)
			if err != nil {
				return p, models.ErrQualityRange
			}
			p.Quality = &q
		case "pages":
			v := val
			p.PageRange = &v
		default:
			return p, fmt.Errorf("unknown option %q", key)
		}
	}
	return p, nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes", "true", "1":
		return true, nil
	case "off", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("want on or off, got %q", s)
}

func (a *App) Clear(ctx context.Context, args []string) error {
	n := a.store.ClearQueue()
	printlnFn(fmt.Sprintf("Removed %d file(s)", n))
	return nil
}

// Convert starts the given items, or every pending item, and watches the
// jobs they create.
func (a *App) Convert(ctx context.Context, args []string) error {
	ids := a.store.PendingIDs()
	if len(args) > 0 {
		ids = make([]string, 0, len(args))
		for _, ref := range args {
			it, err := a.resolveItem(ref)
			if err != nil {
				return err
			}
			ids = append(ids, it.ID)
		}
	}
	if len(ids) == 0 {
		printlnFn("Nothing to convert")
		return nil
	}

	jobIDs, err := a.store.StartConversion(ctx, ids)
	for _, id := range jobIDs {
		a.watch(ctx, id)
	}
	if len(jobIDs) > 0 {
		printlnFn(fmt.Sprintf("Started %d job(s)", len(jobIDs)))
	}
	return err
}

func (a *App) Retry(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("retry <id>")
	}
	it, err := a.resolveItem(args[0])
	if err != nil {
		return err
	}
	if err := a.store.RetryConversion(ctx, it.ID); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("%s is queued again, run 'convert' to start it", it.File.Name))
	return nil
}
