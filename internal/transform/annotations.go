// Package transform holds event-stream rewrites that sit between a Reader
// and a Writer: annotation removal, branch inflation and comment
// attributes.
package transform

import (
	"bytecraft/internal/classfile"
)

// DropAnnotations removes class, field and method annotations by returning
// nil visitors, which the reader treats as "skip".
func DropAnnotations(next classfile.ClassVisitor) classfile.ClassVisitor {
	return &annotationFilter{ClassForwarder: classfile.ClassForwarder{Next: next}, sink: func() classfile.AnnotationVisitor { return nil }}
}

// SinkAnnotations removes annotations by handing the reader a visitor that
// swallows every value. The output matches DropAnnotations.
func SinkAnnotations(next classfile.ClassVisitor) classfile.ClassVisitor {
	return &annotationFilter{ClassForwarder: classfile.ClassForwarder{Next: next}, sink: func() classfile.AnnotationVisitor { return discard{} }}
}

type annotationFilter struct {
	classfile.ClassForwarder
	sink func() classfile.AnnotationVisitor
}

func (f *annotationFilter) VisitAnnotation(string, bool) classfile.AnnotationVisitor { return f.sink() }

func (f *annotationFilter) VisitField(access int, name, desc, signature string, value any) classfile.FieldVisitor {
	fv := f.ClassForwarder.VisitField(access, name, desc, signature, value)
	if fv == nil {
		return nil
	}
	return &fieldFilter{FieldForwarder: classfile.FieldForwarder{Next: fv}, sink: f.sink}
}

func (f *annotationFilter) VisitMethod(access int, name, desc, signature string, exceptions []string) classfile.MethodVisitor {
	mv := f.ClassForwarder.VisitMethod(access, name, desc, signature, exceptions)
	if mv == nil {
		return nil
	}
	return &methodFilter{MethodForwarder: classfile.MethodForwarder{Next: mv}, sink: f.sink}
}

type fieldFilter struct {
	classfile.FieldForwarder
	sink func() classfile.AnnotationVisitor
}

func (f *fieldFilter) VisitAnnotation(string, bool) classfile.AnnotationVisitor { return f.sink() }

type methodFilter struct {
	classfile.MethodForwarder
	sink func() classfile.AnnotationVisitor
}

func (m *methodFilter) VisitAnnotationDefault() classfile.AnnotationVisitor { return m.sink() }

func (m *methodFilter) VisitAnnotation(string, bool) classfile.AnnotationVisitor { return m.sink() }

func (m *methodFilter) VisitParameterAnnotation(int, string, bool) classfile.AnnotationVisitor {
	return m.sink()
}

// discard accepts and ignores annotation values.
type discard struct{}

func (discard) Visit(string, any)                                            {}
func (discard) VisitEnum(string, string, string)                             {}
func (d discard) VisitAnnotation(string, string) classfile.AnnotationVisitor { return d }
func (d discard) VisitArray(string) classfile.AnnotationVisitor               { return d }
func (discard) VisitEnd()                                                    {}
