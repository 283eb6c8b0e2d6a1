package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"civictrack/backend/internal/apperr"
	"civictrack/backend/internal/config"
	"civictrack/backend/internal/imaging"
	"civictrack/backend/internal/models"
	"civictrack/backend/internal/reports"

	"github.com/gin-gonic/gin"
)

// multipartOverhead is the room left for form fields next to the image.
const multipartOverhead = 1 << 20

type createIssueRequest struct {
	reports.CreateInput
	// Image is an optional data:image/... URI.
	Image string `json:"image"`
}

// CreateIssue accepts JSON with an inline image or a multipart form with an
// "image" file part.
func (h *Handler) CreateIssue(c *gin.Context) {
	h.limitBody(c)

	var in reports.CreateInput
	if isMultipart(c) {
		payload, err := h.readImage(c)
		if err != nil {
			h.respondError(c, err)
			return
		}
		in = reports.CreateInput{
			Title:            c.PostForm("title"),
			Description:      c.PostForm("description"),
			Category:         c.PostForm("category"),
			Location:         c.PostForm("location"),
			Address:          c.PostForm("address"),
			ReporterEmail:    c.PostForm("reporterEmail"),
			ReporterUsername: c.PostForm("reporterUsername"),
			Image:            payload,
		}
	} else {
		var req createIssueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondError(c, bodyError(err))
			return
		}
		in = req.CreateInput
		in.Image = imaging.Payload{Inline: req.Image}
	}

	if who, ok := identityFrom(c); ok {
		in.ReporterID = who.UserID
	}

	report, err := h.Reports.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (h *Handler) ListIssues(c *gin.Context) {
	filter := models.ReportFilter{
		Category: c.Query("category"),
		Limit:    config.DefaultListLimit,
	}
	if s := c.Query("status"); s != "" {
		status, ok := models.ParseReportStatus(s)
		if !ok {
			h.respondError(c, apperr.Validation("unknown status "+s, "status"))
			return
		}
		filter.Status = status
	}
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			h.respondError(c, apperr.Validation("limit must be a positive integer", "limit"))
			return
		}
		filter.Limit = n
	}

	list, err := h.Reports.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetIssue(c *gin.Context) {
	report, err := h.Reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// UpdateIssue applies a staff update limited to status and rejectionRemark.
func (h *Handler) UpdateIssue(c *gin.Context) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		h.respondError(c, bodyError(err))
		return
	}
	update, err := reports.ParseUpdate(raw)
	if err != nil {
		h.respondError(c, err)
		return
	}

	res, err := h.Reports.ApplyUpdate(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Report)
}

func (h *Handler) UploadResolutionImage(c *gin.Context) {
	h.limitBody(c)

	var payload imaging.Payload
	if isMultipart(c) {
		p, err := h.readImage(c)
		if err != nil {
			h.respondError(c, err)
			return
		}
		payload = p
	} else {
		var body struct {
			Image string `json:"image"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			h.respondError(c, bodyError(err))
			return
		}
		payload.Inline = body.Image
	}

	report, err := h.Reports.AppendResolutionImage(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) FollowIssue(c *gin.Context) {
	who, _ := identityFrom(c)
	set, err := h.Followers.Follow(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"followers": set})
}

func (h *Handler) UnfollowIssue(c *gin.Context) {
	who, _ := identityFrom(c)
	set, err := h.Followers.Unfollow(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"followers": set})
}

func (h *Handler) ListComments(c *gin.Context) {
	comments, err := h.Reports.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *Handler) AddComment(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, bodyError(err))
		return
	}
	who, _ := identityFrom(c)

	comment, err := h.Reports.AddComment(c.Request.Context(), c.Param("id"), who.UserID, body.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Leaderboard ranks reporters, optionally within ?city=.
func (h *Handler) Leaderboard(c *gin.Context) {
	var limit int
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			h.respondError(c, apperr.Validation("limit must be a positive integer", "limit"))
			return
		}
		limit = n
	}

	entries, err := h.Reports.Leaderboard(c.Request.Context(), c.Query("city"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func (h *Handler) limitBody(c *gin.Context) {
	if h.MaxImageBytes > 0 {
		// Inline images are base64, a third larger than the binary.
		limit := h.MaxImageBytes + h.MaxImageBytes/2 + multipartOverhead
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
}

// readImage collects the "image" part of a multipart form. The form may
// also carry an inline data URI in an "image" text field.
func (h *Handler) readImage(c *gin.Context) (imaging.Payload, error) {
	payload := imaging.Payload{Inline: c.PostForm("image")}

	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return payload, nil
	}
	if err != nil {
		return payload, bodyError(err)
	}
	if h.MaxImageBytes > 0 && fh.Size > h.MaxImageBytes {
		return payload, apperr.Validation("image exceeds the maximum size", "image")
	}

	data, err := readPart(fh, h.MaxImageBytes)
	if err != nil {
		return payload, err
	}
	payload.Data = data
	return payload, nil
}

func readPart(fh *multipart.FileHeader, max int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Validation("unreadable image upload", "image")
	}
	defer f.Close()

	r := io.Reader(f)
	if max > 0 {
		r = io.LimitReader(f, max+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.Validation("unreadable image upload", "image")
	}
	if max > 0 && int64(len(data)) > max {
		return nil, apperr.Validation("image exceeds the maximum size", "image")
	}
	return data, nil
}

// bodyError classifies a request decoding failure.
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation("request body too large")
	}
	return apperr.Validation("malformed request body: " + err.Error())
}
