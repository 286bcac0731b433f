package storage

// Minimal file signatures recognized by the MIME sniffer
var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
	pngBytes = append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 32)...)
	zipBytes = append([]byte{'P', 'K', 0x03, 0x04}, make([]byte, 32)...)
)
