package transform

import (
	"fmt"

	"bytecraft/internal/classfile"
	"bytecraft/internal/code"
)

// Comment is an empty class-level marker attribute.
type Comment struct{}

func (Comment) Name() string { return "Comment" }

// CodeComment is an empty marker attribute nested in Code.
type CodeComment struct{}

func (CodeComment) Name() string { return "CodeComment" }

func emptyCodec(name string, scoped bool, attr classfile.Attribute) classfile.Codec {
	return classfile.Codec{
		Name:       name,
		CodeScoped: scoped,
		Read: func(_ *classfile.ReadContext, data []byte) (classfile.Attribute, error) {
			if len(data) != 0 {
				return nil, fmt.Errorf("%s: %d unexpected bytes", name, len(data))
			}
			return attr, nil
		},
		Write: func(*classfile.WriteContext, classfile.Attribute) ([]byte, error) {
			return []byte{}, nil
		},
	}
}

// CommentCodecs returns the codecs for Comment and CodeComment.
func CommentCodecs() []classfile.Codec {
	return []classfile.Codec{
		emptyCodec("Comment", false, Comment{}),
		emptyCodec("CodeComment", true, CodeComment{}),
	}
}

// CommentRegistry returns a registry holding CommentCodecs.
func CommentRegistry() *classfile.Registry {
	return classfile.NewRegistry(CommentCodecs()...)
}

// InjectComments adds a Comment to the class and a CodeComment to every
// method body that does not already carry one.
func InjectComments(next classfile.ClassVisitor) classfile.ClassVisitor {
	return &commenter{ClassForwarder: classfile.ClassForwarder{Next: next}}
}

type commenter struct {
	classfile.ClassForwarder
	hasComment bool
	pending    bool
}

func (c *commenter) Visit(version, access int, name, signature, super string, interfaces []string) {
	c.ClassForwarder.Visit(version, access, name, signature, super, interfaces)
	c.pending = true
}

func (c *commenter) VisitAttribute(attr classfile.Attribute) {
	if attr.Name() == "Comment" {
		c.hasComment = true
	}
	c.ClassForwarder.VisitAttribute(attr)
}

// flush emits the class Comment before the first event that closes the
// class attribute section.
func (c *commenter) flush() {
	if !c.pending {
		return
	}
	c.pending = false
	if !c.hasComment {
		c.ClassForwarder.VisitAttribute(Comment{})
	}
}

func (c *commenter) VisitInnerClass(name, outer, inner string, access int) {
	c.flush()
	c.ClassForwarder.VisitInnerClass(name, outer, inner, access)
}

func (c *commenter) VisitField(access int, name, desc, signature string, value any) classfile.FieldVisitor {
	c.flush()
	return c.ClassForwarder.VisitField(access, name, desc, signature, value)
}

func (c *commenter) VisitMethod(access int, name, desc, signature string, exceptions []string) classfile.MethodVisitor {
	c.flush()
	mv := c.ClassForwarder.VisitMethod(access, name, desc, signature, exceptions)
	if mv == nil {
		return nil
	}
	return &codeCommenter{MethodForwarder: classfile.MethodForwarder{Next: mv}}
}

func (c *commenter) VisitEnd() {
	c.flush()
	c.ClassForwarder.VisitEnd()
}

type codeCommenter struct {
	classfile.MethodForwarder
	inCode bool
	has    bool
}

func (m *codeCommenter) VisitCode(labels *code.Labels) {
	m.inCode = true
	m.MethodForwarder.VisitCode(labels)
}

func (m *codeCommenter) VisitAttribute(attr classfile.Attribute) {
	if m.inCode && attr.Name() == "CodeComment" {
		m.has = true
	}
	m.MethodForwarder.VisitAttribute(attr)
}

func (m *codeCommenter) VisitMaxs(maxStack, maxLocals int) {
	if m.inCode && !m.has {
		m.MethodForwarder.VisitAttribute(CodeComment{})
	}
	m.MethodForwarder.VisitMaxs(maxStack, maxLocals)
}
