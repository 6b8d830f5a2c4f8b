package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lvillar/invoicegen"
	"github.com/lvillar/invoicegen/archive"
	"github.com/lvillar/invoicegen/invoice"
	"github.com/lvillar/invoicegen/payment"
)

// MaxQRPixels bounds the qr_px parameter of GetPaymentQr.
const MaxQRPixels = 4096

const msgNoQR = "Не удалось сформировать QR-код"

func description() gin.H {
	return gin.H{
		"message": "LeadForce Document Generator",
		"endpoints": gin.H{
			"pdf":      "/Document/GetPdf",
			"docx":     "/Document/GetDocx",
			"zip_pdf":  "/Document/GetPdfZip",
			"zip_docx": "/Document/GetDocxZip",
			"zip_all":  "/Document/GetAllZip",
			"qr_png":   "/Document/GetPaymentQr",
		},
		"docs": "Отправьте GET-запрос на любой endpoint, передав параметры сделки в query string.",
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, description())
}

// handleFile builds the invoice and returns one of its files inline.
func (s *Server) handleFile(name, contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, ok := s.build(c)
		if !ok {
			return
		}
		defer s.cleanup(c, res)

		path := artifactPath(res, name)
		if path == "" {
			s.fail(c, fmt.Errorf("%s was not produced", name))
			return
		}
		c.Header("Content-Type", contentType)
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
		c.File(path)
	}
}

// handleZip builds the invoice and returns the named files as an attachment.
// Files that were not produced, such as a failed QR image, are left out.
func (s *Server) handleZip(zipName string, names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, ok := s.build(c)
		if !ok {
			return
		}
		defer s.cleanup(c, res)

		entries := make([]archive.Entry, 0, len(names))
		for _, name := range names {
			e, err := archive.FileEntry(artifactPath(res, name), name)
			if err != nil {
				s.fail(c, err)
				return
			}
			entries = append(entries, e)
		}
		data, err := archive.Zip(entries...)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", zipName))
		c.Data(http.StatusOK, invoicegen.ContentTypeZip, data)
	}
}

func (s *Server) handlePaymentQR(c *gin.Context) {
	size := 0
	if raw := c.Query("qr_px"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > MaxQRPixels {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("qr_px must be an integer between 0 and %d", MaxQRPixels)})
			return
		}
		size = n
	}

	qr, err := s.gen.PaymentQR(query(c), size)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header(headerQRPayload, qr.Payload)
	c.Header(headerQRBase64, qr.Base64)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", invoicegen.QRName))
	c.Data(http.StatusOK, invoicegen.ContentTypePNG, qr.PNG)
}

func (s *Server) build(c *gin.Context) (*invoicegen.Result, bool) {
	res, err := s.gen.Build(c.Request.Context(), query(c))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return res, true
}

func (s *Server) cleanup(c *gin.Context, res *invoicegen.Result) {
	if err := res.Cleanup(); err != nil {
		s.log.Warn().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg("removing scratch dir")
	}
}

// fail answers with {"error": ...}. Missing payment data is the caller's
// fault; everything else is ours.
func (s *Server) fail(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, err.Error()
	switch {
	case errors.Is(err, invoicegen.ErrNoPayload):
		status, msg = http.StatusBadRequest, msgNoQR
	case errors.Is(err, payment.ErrIncompleteDetails):
		status = http.StatusBadRequest
	}
	s.log.Error().Err(err).Str("request_id", c.GetString(ctxRequestID)).Int("status", status).Msg("request failed")
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func query(c *gin.Context) invoice.Query {
	return invoice.QueryFromValues(c.Request.URL.Query())
}

func artifactPath(res *invoicegen.Result, name string) string {
	switch name {
	case invoicegen.DocxName:
		return res.DocxPath
	case invoicegen.PDFName:
		return res.PDFPath
	case invoicegen.QRName:
		return res.QRPath
	}
	return ""
}
