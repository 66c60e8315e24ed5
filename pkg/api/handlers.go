package api

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/files"
)

// ============================================================================
// Response shapes
// ============================================================================

type statusResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type uploadEntry struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	FileID  string `json:"file_id,omitempty"`
}

type accessEntry struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Type     string `json:"type"`
}

type ownedEntry struct {
	FileID   string        `json:"file_id"`
	Name     string        `json:"name"`
	Code     int           `json:"code"`
	URL      string        `json:"url"`
	Accesses []accessEntry `json:"accesses"`
}

type sharedEntry struct {
	FileID string `json:"file_id"`
	Code   int    `json:"code"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

// renameRequest carries the new name. The service validates it after the
// existence and ownership checks.
type renameRequest struct {
	Name string `json:"name" form:"name"`
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.config.MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Upload too large")
		}
		// Not multipart, or no parts at all
		return files.ErrNoPayload
	}
	defer func() { _ = form.RemoveAll() }()

	var headers []*multipart.FileHeader
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["files[]"]...)
	payloads := make([]files.Payload, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return err
		}
		payloads = append(payloads, files.Payload{Name: fh.Filename, Data: data})
	}

	results, err := s.service.Upload(req.Context(), principalFrom(c), payloads)
	if err != nil {
		return err
	}

	out := make([]uploadEntry, len(results))
	for i, r := range results {
		if r.Err != nil {
			kind := files.KindOf(r.Err)
			out[i] = uploadEntry{Code: StatusFor(kind), Message: kind.Message(), Name: r.Name}
			continue
		}
		out[i] = uploadEntry{
			Success: true,
			Code:    http.StatusOK,
			Message: "Success",
			Name:    r.Name,
			URL:     r.URL,
			FileID:  r.PublicID,
		}
	}
	return c.JSON(http.StatusOK, out)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleRename(c echo.Context) error {
	var req renameRequest
	if err := c.Bind(&req); err != nil {
		// An unreadable body carries no usable name; the service reports it
		// once the file is known to be the caller's.
		logger.Debug("rename: bind failed: %v", err)
		req.Name = ""
	}

	if _, err := s.service.Rename(c.Request().Context(), principalFrom(c), c.Param("file_id"), req.Name); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Success: true, Code: http.StatusOK, Message: "Renamed"})
}

func (s *Server) handleDelete(c echo.Context) error {
	if err := s.service.Delete(c.Request().Context(), principalFrom(c), c.Param("file_id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Success: true, Code: http.StatusOK, Message: "File deleted"})
}

func (s *Server) handleDownload(c echo.Context) error {
	dl, err := s.service.Download(c.Request().Context(), principalFrom(c), c.Param("file_id"))
	if err != nil {
		return err
	}
	defer dl.Content.Close()

	h := c.Response().Header()
	h.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	h.Set(echo.HeaderContentLength, strconv.FormatInt(dl.Size, 10))
	return c.Stream(http.StatusOK, dl.ContentType, dl.Content)
}

func (s *Server) handleListOwned(c echo.Context) error {
	owned, err := s.service.ListOwned(c.Request().Context(), principalFrom(c))
	if err != nil {
		return err
	}

	out := make([]ownedEntry, len(owned))
	for i, f := range owned {
		accesses := make([]accessEntry, len(f.Grantees))
		for j, g := range f.Grantees {
			accesses[j] = accessEntry{FullName: g.FullName, Email: g.Email, Type: g.Type}
		}
		out[i] = ownedEntry{FileID: f.PublicID, Name: f.Name, Code: http.StatusOK, URL: f.URL, Accesses: accesses}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleListShared(c echo.Context) error {
	shared, err := s.service.ListShared(c.Request().Context(), principalFrom(c))
	if err != nil {
		return err
	}

	out := make([]sharedEntry, len(shared))
	for i, f := range shared {
		out[i] = sharedEntry{FileID: f.PublicID, Code: http.StatusOK, Name: f.Name, URL: f.URL}
	}
	return c.JSON(http.StatusOK, out)
}
