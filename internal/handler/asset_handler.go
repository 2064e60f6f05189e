package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lgu-admin-api/internal/dto"
	"github.com/noah-isme/lgu-admin-api/internal/middleware"
	"github.com/noah-isme/lgu-admin-api/internal/models"
	"github.com/noah-isme/lgu-admin-api/internal/service"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
	"github.com/noah-isme/lgu-admin-api/pkg/response"
)

type assetService interface {
	Search(ctx context.Context, q dto.AssetListQuery) (*models.AssetPage, error)
	Get(ctx context.Context, publicID string) (*models.Asset, error)
	Stats(ctx context.Context) (*models.AssetStats, bool, error)
	Upload(ctx context.Context, in service.UploadInput, actorID string) (*models.Asset, error)
	UpdateMetadata(ctx context.Context, publicID string, req dto.UpdateAssetRequest, actorID string) (*models.Asset, error)
	RequestDeletion(ctx context.Context, publicID, reason, actorID string) (*dto.DeleteAssetResponse, error)
	SignedUploadParams(folder string) map[string]string
}

// AssetHandler serves the admin media library.
type AssetHandler struct {
	service        assetService
	maxUploadBytes int64
}

// NewAssetHandler constructs the handler. Uploads larger than maxUploadBytes are rejected.
func NewAssetHandler(service assetService, maxUploadBytes int64) *AssetHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 100 << 20
	}
	return &AssetHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// List godoc
// @Summary List media assets
// @Tags Assets
// @Produce json
// @Param search query string false "Matches public id, description and alt text"
// @Param folder query string false "Folder"
// @Param resource_type query string false "image, video or raw"
// @Param tags query []string false "Every tag must match"
// @Param sync_status query string false "synced, pending or error"
// @Param sort_by query string false "Sort column"
// @Param sort_order query string false "asc or desc"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assets [get]
func (h *AssetHandler) List(c *gin.Context) {
	var q dto.AssetListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "asset query"))
		return
	}
	page, err := h.service.Search(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{
		Page:       page.Page,
		PageSize:   page.Limit,
		TotalCount: page.Total,
		HasNext:    page.HasNext,
		HasPrev:    page.HasPrev,
	}
	response.JSON(c, http.StatusOK, page.Assets, pagination, middleware.ResponseMeta(c))
}

// Stats godoc
// @Summary Media library counters
// @Tags Assets
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assets/stats [get]
func (h *AssetHandler) Stats(c *gin.Context) {
	stats, hit, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ResponseMeta(c))
}

// Get godoc
// @Summary Get a media asset
// @Tags Assets
// @Produce json
// @Param publicId path string true "Public id, URL-encoded when it contains slashes"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assets/{publicId} [get]
func (h *AssetHandler) Get(c *gin.Context) {
	asset, err := h.service.Get(c.Request.Context(), c.Param("publicId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, asset, nil, middleware.ResponseMeta(c))
}

// Upload godoc
// @Summary Upload a media asset
// @Description Uploads to the provider and mirrors the result locally before responding.
// @Tags Assets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Media file"
// @Param public_id formData string false "Public id without folder"
// @Param folder formData string false "Folder"
// @Param tags formData string false "Comma separated tags"
// @Param resource_type formData string false "auto, image, video or raw"
// @Param description formData string false "Description"
// @Param alt_text formData string false "Alt text"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /assets [post]
func (h *AssetHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, invalidPayload(err, "upload, file is required"))
		return
	}
	if header.Size > h.maxUploadBytes {
		response.Error(c, appErrors.New("PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes)))
		return
	}
	var form dto.UploadAssetForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, invalidPayload(err, "upload form"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, invalidPayload(err, "upload"))
		return
	}
	defer file.Close()

	asset, err := h.service.Upload(c.Request.Context(), service.UploadInput{
		Filename: header.Filename,
		File:     file,
		Form:     form,
	}, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, asset, middleware.ResponseMeta(c))
}

// Update godoc
// @Summary Edit asset metadata
// @Description Saves locally and marks the asset pending; the next sync pushes the change to the provider.
// @Tags Assets
// @Accept json
// @Produce json
// @Param publicId path string true "Public id"
// @Param payload body dto.UpdateAssetRequest true "Metadata"
// @Success 200 {object} response.Envelope
// @Router /assets/{publicId} [patch]
func (h *AssetHandler) Update(c *gin.Context) {
	var req dto.UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "asset payload"))
		return
	}
	asset, err := h.service.UpdateMetadata(c.Request.Context(), c.Param("publicId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, asset, nil, middleware.ResponseMeta(c))
}

// Delete godoc
// @Summary Delete a media asset
// @Description Soft-deletes locally and queues the provider deletion.
// @Tags Assets
// @Accept json
// @Produce json
// @Param publicId path string true "Public id"
// @Param payload body dto.DeleteAssetRequest false "Reason"
// @Success 202 {object} response.Envelope
// @Router /assets/{publicId} [delete]
func (h *AssetHandler) Delete(c *gin.Context) {
	var req dto.DeleteAssetRequest
	if err := bindOptionalJSON(c, &req, "delete payload"); err != nil {
		response.Error(c, err)
		return
	}
	queued, err := h.service.RequestDeletion(c.Request.Context(), c.Param("publicId"), req.Reason, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, queued)
}

// UploadSignature godoc
// @Summary Signed parameters for a direct browser upload
// @Tags Assets
// @Produce json
// @Param folder query string false "Target folder"
// @Success 200 {object} response.Envelope
// @Router /assets/upload-signature [get]
func (h *AssetHandler) UploadSignature(c *gin.Context) {
	var q dto.UploadSignatureQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "signature query"))
		return
	}
	response.JSON(c, http.StatusOK, h.service.SignedUploadParams(q.Folder), nil, middleware.ResponseMeta(c))
}
