package service

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/neproger/docbot/types"
)

// PDFService extracts per-page text from PDF files. It shells out to the
// poppler utilities and falls back to tesseract OCR for pages that contain
// only scanned images.
type PDFService struct {
	ocrLanguages string
}

var DefaultDocumentServiceConfig = types.DocumentServiceConfig{
	OCRLanguages: "eng+rus",
}

func NewPDFService(config types.DocumentServiceConfig) *PDFService {
	languages := config.OCRLanguages
	if languages == "" {
		languages = DefaultDocumentServiceConfig.OCRLanguages
	}
	return &PDFService{
		ocrLanguages: languages,
	}
}

// ExtractPages returns the document's text page by page, 1-based order
// preserved. A page that yields no text is kept as an empty string so page
// numbering stays aligned with the source.
func (s *PDFService) ExtractPages(filePath string) ([]string, error) {
	totalPages, err := getNumPages(filePath)
	if err != nil {
		return nil, err
	}
	log.Println("Total pages: ", totalPages)

	pages := make([]string, 0, totalPages)
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		text, err := s.extractText(filePath, pageNum)
		if err != nil {
			log.Printf("Warning: failed to extract text from page %d: %v", pageNum, err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, s.cleanText(text))
	}
	return pages, nil
}

// GetFileNameWithoutExt extracts filename without extension from a file path
func GetFileNameWithoutExt(filepath string) string {
	base := filepath[strings.LastIndex(filepath, "/")+1:]
	if idx := strings.LastIndex(base, "."); idx != -1 {
		base = base[:idx]
	}
	return base
}

// extractText attempts to extract text from a specific page using multiple methods
func (s *PDFService) extractText(filePath string, pageNumber int) (string, error) {
	text, err := s.extractTextWithPdftotext(filePath, pageNumber)
	if err != nil || text == "" {
		text, err = s.extractTextWithTesseract(filePath, pageNumber)
		if err != nil {
			return "", fmt.Errorf("failed to extract text: %w", err)
		}
	}
	return text, nil
}

func (s *PDFService) extractTextWithPdftotext(filepath string, pageNumber int) (string, error) {
	pdftotextCmd := exec.Command("pdftotext", "-f", strconv.Itoa(pageNumber),
		"-l", strconv.Itoa(pageNumber),
		"-enc", "UTF-8", "-nopgbrk",
		filepath, "-")
	var txtOut bytes.Buffer
	pdftotextCmd.Stdout = &txtOut

	if err := pdftotextCmd.Run(); err != nil {
		log.Printf("Error executing pdftotext command for page %d: %v", pageNumber, err)
	}
	pageText := txtOut.String()
	if trimmed := strings.TrimSpace(pageText); len(trimmed) > 0 {
		return trimmed, nil
	}
	return "", fmt.Errorf("got nothing at page %d", pageNumber)
}

func (s *PDFService) extractTextWithTesseract(pdfPath string, pageNumber int) (string, error) {
	log.Println("Try extracting with tesseract")
	if _, err := os.Stat("temp"); os.IsNotExist(err) {
		os.Mkdir("temp", os.ModePerm)
	}
	tempFolder := filepath.Join("temp", GetFileNameWithoutExt(pdfPath))
	if _, err := os.Stat(tempFolder); err == nil {
		os.RemoveAll(tempFolder)
	}
	if err := os.Mkdir(tempFolder, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempFolder)

	convertCmd := exec.Command("pdftoppm", "-f", strconv.Itoa(pageNumber), "-l", strconv.Itoa(pageNumber), "-png", pdfPath, filepath.Join(tempFolder, "page"))
	if err := convertCmd.Run(); err != nil {
		return "", fmt.Errorf("error converting page %d to image: %w", pageNumber, err)
	}
	pattern := filepath.Join(tempFolder, "page-*.png")
	file, err := filepath.Glob(pattern)
	if err != nil || len(file) == 0 {
		return "", fmt.Errorf("failed to read image files: %w", err)
	}
	imageFile := file[0]
	ocrCmd := exec.Command("tesseract",
		imageFile,
		"stdout",
		"-l", s.ocrLanguages,
		"--oem", "3",
		"--psm", "3",
	)
	var ocrOut bytes.Buffer
	ocrCmd.Stdout = &ocrOut
	if err := ocrCmd.Run(); err != nil {
		return "", fmt.Errorf("failed to run tesseract: %w", err)
	}
	ocrText := ocrOut.String()
	if trimmed := strings.TrimSpace(ocrText); len(trimmed) > 0 {
		return trimmed, nil
	}
	return "", fmt.Errorf("got nothing at page %d", pageNumber)
}

// getNumPages uses pdfinfo to get the total number of pages in a PDF file
func getNumPages(pdfPath string) (int, error) {
	cmd := exec.Command("pdfinfo", pdfPath)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("error running pdfinfo: %v", err)
	}

	scanner := bufio.NewScanner(&out)
	re := regexp.MustCompile(`Pages:\s+(\d+)`)
	for scanner.Scan() {
		line := scanner.Text()
		if matches := re.FindStringSubmatch(line); len(matches) == 2 {
			return strconv.Atoi(matches[1])
		}
	}

	return 0, fmt.Errorf("unable to determine page count from pdfinfo")
}

func (s *PDFService) cleanText(text string) string {
	replacements := map[string]string{
		"\u0000": "",   // Null character
		"\ufffd": "",   // Unicode replacement character
		"\u001b": "",   // Escape character
		"\r":     "",   // Carriage return
		"\f":     "\n", // Form feed to newline
		"  ":     " ",  // Multiple spaces to single space
	}
	cleaned := text
	for old, new := range replacements {
		cleaned = strings.ReplaceAll(cleaned, old, new)
	}
	return strings.TrimSpace(cleaned)
}
