package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// formSource resolves form XObject names used by Do. It returns nil, nil for
// names that exist but are not forms.
type formSource interface {
	form(name string) (*formXObject, error)
}

// formXObject is a decoded form XObject ready to be interpreted
type formXObject struct {
	ref       types.IndirectRef
	dict      types.StreamDict
	content   []byte
	matrix    matrix
	resources types.Dict // resources in effect inside the form
	scope     fontSource
}

// resourceScope resolves the fonts and form XObjects of one resource dictionary
type resourceScope struct {
	*resourceFonts
	resources types.Dict
	xobjects  types.Dict
	forms     map[string]*formXObject
}

var _ formSource = (*resourceScope)(nil)

func newResourceScope(xref *model.XRefTable, resources types.Dict) *resourceScope {
	rs := &resourceScope{
		resourceFonts: newResourceFonts(xref, resources),
		resources:     resources,
		forms:         make(map[string]*formXObject),
	}
	if resources != nil {
		if o, ok := resources["XObject"]; ok {
			if d, err := xref.DereferenceDict(o); err == nil {
				rs.xobjects = d
			}
		}
	}
	return rs
}

func (rs *resourceScope) form(name string) (*formXObject, error) {
	if f, ok := rs.forms[name]; ok {
		return f, nil
	}
	o, ok := rs.xobjects[name]
	if !ok || o == nil {
		return nil, nil
	}
	ref, ok := o.(types.IndirectRef)
	if !ok {
		return nil, fmt.Errorf("not an indirect stream")
	}

	sd, _, err := rs.xref.DereferenceStreamDict(ref)
	if err != nil {
		return nil, err
	}
	if sd == nil || nameValue(rs.xref, sd.Dict["Subtype"]) != "Form" {
		return nil, nil
	}
	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}

	// A form without resources of its own uses those of the stream painting it
	resources := rs.resources
	if r, ok := sd.Dict["Resources"]; ok {
		if d, err := rs.xref.DereferenceDict(r); err == nil && d != nil {
			resources = d
		}
	}

	f := &formXObject{
		ref:       ref,
		dict:      *sd,
		content:   sd.Content,
		matrix:    formMatrix(rs.xref, sd.Dict["Matrix"]),
		resources: resources,
	}
	f.scope = newResourceScope(rs.xref, resources)
	rs.forms[name] = f
	return f, nil
}

func formMatrix(xref *model.XRefTable, o types.Object) matrix {
	arr, err := xref.DereferenceArray(o)
	if err != nil || len(arr) != 6 {
		return identity
	}
	var m matrix
	for i, item := range arr {
		v, ok := numberValue(xref, item)
		if !ok {
			return identity
		}
		m[i] = v
	}
	return m
}
