package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/images"
	"github.com/marutilaminates/laminates_backend/models"
	"github.com/marutilaminates/laminates_backend/utils"
)

const (
	multipartMemory = 32 << 20
	maxUploadBytes  = 200 << 20
)

// Per-item file fields. Every pattern captures the item index.
var itemFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^items\[(\d+)\]\[images\](\[\])?$`),
	regexp.MustCompile(`^item_images_(\d+)$`),
	regexp.MustCompile(`^images_(\d+)$`),
	regexp.MustCompile(`^item_(\d+)_images$`),
	regexp.MustCompile(`^files_(\d+)$`),
}

// Header fields copied from a multipart form into the JSON document.
var quotationFormFields = []string{"quotation_date", "customer_id", "last_shared_date", "remarks", "price_type"}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// bindQuotationRequest fills target (a *models.NewQuotation or
// *models.UpdateQuotation) from a JSON body or a multipart form, and returns
// the uploaded files grouped by item index.
func bindQuotationRequest(c *gin.Context, target interface{}) ([][]images.Upload, error) {
	if !isMultipart(c) {
		if err := c.ShouldBindJSON(target); err != nil {
			return nil, bindError(err)
		}
		return nil, nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		return nil, utils.Validation("body", "invalid multipart form: "+err.Error())
	}
	form := c.Request.MultipartForm

	doc, err := formDocument(form.Value)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(doc, target); err != nil {
		return nil, utils.Validation("items", "items must be a JSON array of items: "+err.Error())
	}
	return groupUploads(form.File, config.GetImageConfig().MaxSizeBytes)
}

// formDocument turns form values into one JSON object so that multipart and
// JSON requests decode through the same struct tags.
func formDocument(values map[string][]string) ([]byte, error) {
	doc := make(map[string]json.RawMessage)
	for _, field := range quotationFormFields {
		v, ok := values[field]
		if !ok || len(v) == 0 {
			continue
		}
		encoded, err := json.Marshal(v[0])
		if err != nil {
			return nil, err
		}
		doc[field] = encoded
	}
	if raw, ok := values["items"]; ok && len(raw) > 0 {
		trimmed := strings.TrimSpace(raw[0])
		if !json.Valid([]byte(trimmed)) {
			return nil, utils.Validation("items", "items must be valid JSON")
		}
		doc["items"] = json.RawMessage(trimmed)
	}
	return json.Marshal(doc)
}

func itemIndex(field string) (int, bool) {
	for _, re := range itemFilePatterns {
		if m := re.FindStringSubmatch(field); m != nil {
			i, err := strconv.Atoi(m[1])
			return i, err == nil
		}
	}
	return 0, false
}

// groupUploads reads files in field name order so the stored image order is
// stable for a given request. Fields that name no item are ignored; an index
// past MaxQuotationItems is rejected before anything is allocated for it.
func groupUploads(files map[string][]*multipart.FileHeader, maxSize int64) ([][]images.Upload, error) {
	fields := make([]string, 0, len(files))
	for field := range files {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var grouped [][]images.Upload
	for _, field := range fields {
		index, ok := itemIndex(field)
		if !ok {
			continue
		}
		if index >= models.MaxQuotationItems {
			return nil, utils.Validation(field, fmt.Sprintf("item index %d is out of range, a quotation has at most %d items", index, models.MaxQuotationItems))
		}
		for len(grouped) <= index {
			grouped = append(grouped, nil)
		}
		for _, fh := range files[field] {
			if maxSize > 0 && fh.Size > maxSize {
				return nil, utils.ImageTooLarge(fh.Size, maxSize).AtIndex(index)
			}
			upload, err := readUpload(fh)
			if err != nil {
				return nil, utils.InvalidImage(fmt.Sprintf("could not read %s: %v", fh.Filename, err)).AtIndex(index)
			}
			grouped[index] = append(grouped[index], upload)
		}
	}
	return grouped, nil
}

func readUpload(fh *multipart.FileHeader) (images.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return images.Upload{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return images.Upload{}, err
	}
	return images.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
