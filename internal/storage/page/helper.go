package page

// CreateTestPage builds a Page with data, truncating to fit PageSize.
// It is a test helper; production code never constructs a Page
// directly outside the buffer pool's frame array.
func CreateTestPage(data []byte) *Page {
	p := &Page{}
	p.CopyFrom(data)
	return p
}
