package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"biblioteca/internal/covers"
	"biblioteca/internal/exchange"
	"biblioteca/internal/models"
)

// maxImportSize bounds an import payload
const maxImportSize = 32 << 20

// multipartOverhead is the room left in a multipart body for boundaries and part headers
const multipartOverhead = 64 << 10

// readUpload returns the multipart "file" field when present and the raw
// request body otherwise, together with the uploaded file name if any.
// Payloads over limit bytes are rejected.
func readUpload(c *gin.Context, limit int64) ([]byte, string, error) {
	tooLarge := badRequest(fmt.Errorf("upload larger than %d bytes", limit))

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
		header, err := c.FormFile("file")
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", tooLarge
		}
		if err != nil {
			return nil, "", badRequest(fmt.Errorf("missing file field: %v", err))
		}
		if header.Size > limit {
			return nil, "", tooLarge
		}
		f, err := header.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, limit+1))
		if err != nil {
			return nil, "", err
		}
		if int64(len(data)) > limit {
			return nil, "", tooLarge
		}
		return data, header.Filename, nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	data, err := io.ReadAll(c.Request.Body)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return nil, "", tooLarge
	}
	if err != nil {
		return nil, "", err
	}
	return data, "", nil
}

func (h *Handler) listBooks(c *gin.Context) {
	books, err := h.catalog.List(c.Request.Context())
	if err != nil {
		h.abort(c, err)
		return
	}
	if books == nil {
		books = []models.Book{}
	}
	respond(c, http.StatusOK, books, bookList{Books: books})
}

func (h *Handler) getBook(c *gin.Context) {
	caller, _ := identity(c)
	entry, err := h.catalog.Describe(c.Request.Context(), c.Param("isbn"), caller.IsAdministrator())
	if err != nil {
		h.abort(c, err)
		return
	}
	respond(c, http.StatusOK, entry, nil)
}

func (h *Handler) createBook(c *gin.Context) {
	var draft models.Book
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.abort(c, badRequest(err))
		return
	}
	book, err := h.catalog.Create(c.Request.Context(), draft)
	if err != nil {
		h.abort(c, err)
		return
	}
	respond(c, http.StatusCreated, book, nil)
}

func (h *Handler) updateBook(c *gin.Context) {
	var changes models.Book
	if err := c.ShouldBindJSON(&changes); err != nil {
		h.abort(c, badRequest(err))
		return
	}
	isbn := c.Param("isbn")
	if changes.ISBN != "" && changes.ISBN != isbn {
		h.abort(c, badRequest(errors.New("the ISBN of a book cannot change")))
		return
	}
	book, err := h.catalog.Update(c.Request.Context(), isbn, changes)
	if err != nil {
		h.abort(c, err)
		return
	}
	respond(c, http.StatusOK, book, nil)
}

func (h *Handler) deleteBook(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("isbn")); err != nil {
		h.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// importBooks reads the format from ?formato= or the uploaded file extension
func (h *Handler) importBooks(c *gin.Context) {
	data, filename, err := readUpload(c, maxImportSize)
	if err != nil {
		h.abort(c, err)
		return
	}

	name := c.Query("formato")
	if name == "" && filename != "" {
		name = strings.TrimPrefix(filepath.Ext(filename), ".")
	}
	format, err := exchange.ParseFormat(name)
	if err != nil {
		h.abort(c, err)
		return
	}

	n, err := h.catalog.Import(c.Request.Context(), format, data)
	if err != nil {
		h.abort(c, err)
		return
	}
	respond(c, http.StatusOK, importResult{Format: string(format), Imported: n}, nil)
}

// exportBooks sends one format, or a zip with all of them without ?formato=
func (h *Handler) exportBooks(c *gin.Context) {
	name := c.Query("formato")
	if name == "" {
		data, err := h.catalog.ExportArchive(c.Request.Context())
		if err != nil {
			h.abort(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="biblioteca.zip"`)
		c.Data(http.StatusOK, "application/zip", data)
		return
	}

	format, err := exchange.ParseFormat(name)
	if err != nil {
		h.abort(c, err)
		return
	}
	data, err := h.catalog.Export(c.Request.Context(), format)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="biblioteca.%s"`, format.Extension()))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (h *Handler) getCover(c *gin.Context) {
	data, err := h.catalog.Cover(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *Handler) putCover(c *gin.Context) {
	data, _, err := readUpload(c, covers.MaxSize)
	if err != nil {
		h.abort(c, err)
		return
	}
	if err := h.catalog.PutCover(c.Request.Context(), c.Param("isbn"), data); err != nil {
		h.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
