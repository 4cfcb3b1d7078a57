package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var disableConfigDir sync.Once

// document is an opened PDF. It is only ever used by one goroutine and must
// be closed once the caller is done with it.
type document struct {
	ctx *model.Context
}

// page is the decoded content of one page together with where it came from
type page struct {
	number    int
	dict      types.Dict
	resources types.Dict
	content   []byte
	scope     *resourceScope
}

func openDocument(data []byte) (doc *document, err error) {
	if len(data) == 0 {
		return nil, &DocumentOpenError{Err: errors.New("empty document")}
	}
	disableConfigDir.Do(api.DisableConfigDir)

	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = &DocumentOpenError{Err: fmt.Errorf("malformed document: %v", r)}
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, &DocumentOpenError{Err: err}
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, &DocumentOpenError{Err: err}
	}
	if ctx.PageCount <= 0 {
		return nil, &DocumentOpenError{Err: errors.New("document has no pages")}
	}
	return &document{ctx: ctx}, nil
}

func (d *document) pageCount() int {
	return d.ctx.PageCount
}

func (d *document) page(number int) (*page, error) {
	pd, _, inherited, err := d.ctx.PageDict(number, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read page %d: %w", number, err)
	}
	if pd == nil {
		return nil, fmt.Errorf("page %d not found", number)
	}

	var resources types.Dict
	if o, ok := pd["Resources"]; ok {
		if res, err := d.ctx.DereferenceDict(o); err == nil {
			resources = res
		}
	}
	if resources == nil && inherited != nil {
		resources = inherited.Resources
	}

	p := &page{
		number:    number,
		dict:      pd,
		resources: resources,
		scope:     newResourceScope(d.ctx.XRefTable, resources),
	}

	refs, err := d.contentRefs(pd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contents of page %d: %w", number, err)
	}
	for _, ref := range refs {
		sd, _, err := d.ctx.DereferenceStreamDict(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read content stream %s: %w", ref, err)
		}
		if sd == nil {
			continue
		}
		if err := sd.Decode(); err != nil {
			return nil, fmt.Errorf("failed to decode content stream %s: %w", ref, err)
		}
		p.content = append(p.content, sd.Content...)
		p.content = append(p.content, '\n')
	}
	return p, nil
}

func (d *document) contentRefs(pd types.Dict) ([]types.IndirectRef, error) {
	o, ok := pd["Contents"]
	if !ok || o == nil {
		return nil, nil
	}

	collect := func(arr types.Array) []types.IndirectRef {
		refs := make([]types.IndirectRef, 0, len(arr))
		for _, item := range arr {
			if ref, ok := item.(types.IndirectRef); ok {
				refs = append(refs, ref)
			}
		}
		return refs
	}

	switch v := o.(type) {
	case types.IndirectRef:
		obj, err := d.ctx.Dereference(v)
		if err != nil {
			return nil, err
		}
		if arr, ok := obj.(types.Array); ok {
			return collect(arr), nil
		}
		return []types.IndirectRef{v}, nil
	case types.Array:
		return collect(v), nil
	}
	return nil, fmt.Errorf("unsupported /Contents type %T", o)
}

// commit stores a redacted page. The page gets a new content stream, and every
// rewritten form, together with each form on the path that paints it, is
// stored as a new object referenced from a copy of its owner's resources.
// Objects shared with other pages are never modified; the originals are left
// to the writer, which drops whatever is no longer referenced.
func (d *document) commit(p *page, l *pageLayout, content []byte, forms map[int][]byte) error {
	copied := make(map[int]bool)
	for s := range forms {
		for x := s; x > 0; x = l.streams[x].parent {
			copied[x] = true
		}
	}

	// children are always appended after their parent, so a reverse walk
	// stores every child before the form that references it
	refs := make(map[int]types.IndirectRef)
	for s := len(l.streams) - 1; s > 0; s-- {
		if !copied[s] {
			continue
		}
		cs := l.streams[s]
		sd := cs.form.dict.Clone().(types.StreamDict)
		sd.FilterPipeline = []types.PDFFilter{{Name: filter.Flate}}
		sd.Dict["Filter"] = types.Name(filter.Flate)
		delete(sd.Dict, "DecodeParms")
		sd.Content = cs.source
		if rewritten, ok := forms[s]; ok {
			sd.Content = rewritten
		}
		if err := d.retarget(sd.Dict, cs.form.resources, l, s, refs); err != nil {
			return err
		}
		if err := sd.Encode(); err != nil {
			return fmt.Errorf("failed to encode form XObject %s: %w", cs.name, err)
		}
		ref, err := d.ctx.IndRefForNewObject(sd)
		if err != nil {
			return fmt.Errorf("failed to store form XObject %s: %w", cs.name, err)
		}
		refs[s] = *ref
	}

	if err := d.retarget(p.dict, p.resources, l, 0, refs); err != nil {
		return err
	}

	sd, err := d.ctx.NewStreamDictForBuf(content)
	if err != nil {
		return fmt.Errorf("failed to create content stream for page %d: %w", p.number, err)
	}
	if err := sd.Encode(); err != nil {
		return fmt.Errorf("failed to encode content stream for page %d: %w", p.number, err)
	}
	ref, err := d.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return fmt.Errorf("failed to store content stream for page %d: %w", p.number, err)
	}
	p.dict.Update("Contents", *ref)
	return nil
}

// retarget points the XObject names of owner's resources at the new objects
// stored for the forms that stream s paints. owner receives a copy of its
// resources, so a resource dictionary shared with other pages is untouched.
func (d *document) retarget(owner, resources types.Dict, l *pageLayout, s int, refs map[int]types.IndirectRef) error {
	names := make(map[string]types.IndirectRef)
	for x, ref := range refs {
		if l.streams[x].parent == s {
			names[l.streams[x].name] = ref
		}
	}
	if len(names) == 0 {
		return nil
	}
	if resources == nil {
		return fmt.Errorf("no resources to retarget")
	}

	xobjects, err := d.ctx.DereferenceDict(resources["XObject"])
	if err != nil {
		return fmt.Errorf("failed to read XObject resources: %w", err)
	}
	if xobjects == nil {
		return fmt.Errorf("XObject resources are missing")
	}

	newXObjects := types.NewDict()
	for k, v := range xobjects {
		newXObjects[k] = v
	}
	for name, ref := range names {
		newXObjects[name] = ref
	}

	newResources := types.NewDict()
	for k, v := range resources {
		newResources[k] = v
	}
	newResources["XObject"] = newXObjects
	owner["Resources"] = newResources
	return nil
}

func (d *document) write(w io.Writer) error {
	return api.WriteContext(d.ctx, w)
}

func (d *document) metadata() (title, author, creator, producer string, encrypted bool) {
	x := d.ctx.XRefTable
	return x.Title, x.Author, x.Creator, x.Producer, x.Encrypt != nil
}

func (d *document) close() {
	d.ctx = nil
}
