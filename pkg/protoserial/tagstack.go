package protoserial

// tagStack holds the descriptors of the elements currently being written or
// read by one encoder or decoder. Element calls push a tag and truncate back
// to their entry depth on return, so a scalar that pops its own tag cannot
// leave the stack unbalanced.
type tagStack struct {
	tags []ProtoDesc
}

func (s *tagStack) push(tag ProtoDesc) int {
	depth := len(s.tags)
	s.tags = append(s.tags, tag)
	return depth
}

func (s *tagStack) truncate(depth int) {
	if depth < len(s.tags) {
		s.tags = s.tags[:depth]
	}
}

// peek returns the innermost tag, or MissingTag when the stack is empty.
func (s *tagStack) peek() ProtoDesc {
	if len(s.tags) == 0 {
		return MissingTag
	}
	return s.tags[len(s.tags)-1]
}

// pop removes and returns the innermost tag, or MissingTag when the stack
// is empty.
func (s *tagStack) pop() ProtoDesc {
	if len(s.tags) == 0 {
		return MissingTag
	}
	tag := s.tags[len(s.tags)-1]
	s.tags = s.tags[:len(s.tags)-1]
	return tag
}

func (s *tagStack) len() int { return len(s.tags) }
