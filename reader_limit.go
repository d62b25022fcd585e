package loaddump

// limitedSource stops a source after n bytes. Unlike io.LimitedReader it
// reports ErrLimitExceeded instead of io.EOF, so an exhausted budget is never
// mistaken for a clean end of stream.
type limitedSource struct {
	src source
	n   int64 // remaining budget
}

func limitSource(src source, n int64) source {
	if l, ok := src.(*limitedSource); ok {
		// The tighter budget wins.
		if n < l.n {
			l.n = n
		}
		return l
	}
	return &limitedSource{src: src, n: n}
}

func (l *limitedSource) Read(p []byte) (int, error) {
	if l.n <= 0 {
		return 0, ErrLimitExceeded
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.src.Read(p)
	l.n -= int64(n)
	return n, err
}

func (l *limitedSource) ReadByte() (byte, error) {
	if l.n <= 0 {
		return 0, ErrLimitExceeded
	}
	b, err := l.src.ReadByte()
	if err == nil {
		l.n--
	}
	return b, err
}
