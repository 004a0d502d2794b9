// internal/api/share_handlers.go
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/validation"
)

// ===============================
// 分享链接
// ===============================

// CreateShare 为项目生成新的分享链接，旧链接失效
func (h *Handler) CreateShare(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	req, err := validation.ShareLinkInput(body)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	link, err := h.Shares.Create(c.Request.Context(), mustUser(c), req)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Created(c, link)
}

// GetProjectShare 当前有效的分享链接及访问次数
func (h *Handler) GetProjectShare(c *gin.Context) {
	link, err := h.Shares.Active(c.Request.Context(), mustUser(c), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, link)
}

// RevokeShare 停用分享链接
func (h *Handler) RevokeShare(c *gin.Context) {
	if err := h.Shares.Revoke(c.Request.Context(), mustUser(c), c.Param("token")); err != nil {
		h.Response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ShareQRCode 公开地址的二维码 PNG
func (h *Handler) ShareQRCode(c *gin.Context) {
	png, err := h.Shares.QRCode(c.Request.Context(), mustUser(c), c.Param("token"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.InlineResponse(c, png, "image/png")
}

// PublicShare 匿名访问分享的项目
func (h *Handler) PublicShare(c *gin.Context) {
	view, err := h.Shares.Public(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, view)
}

// ===============================
// 协作
// ===============================

// ListCollaborators 项目协作者
func (h *Handler) ListCollaborators(c *gin.Context) {
	collaborators, err := h.Collaboration.Collaborators(c.Request.Context(), mustUser(c), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, gin.H{"collaborators": collaborators})
}

// InviteCollaborator 按邮箱邀请已注册用户
func (h *Handler) InviteCollaborator(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	in, err := validation.Invite(body)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	collaborator, err := h.Collaboration.Invite(c.Request.Context(), mustUser(c), c.Param("id"), in)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Created(c, collaborator)
}

// RemoveCollaborator 移除协作者，协作者也可以移除自己
func (h *Handler) RemoveCollaborator(c *gin.Context) {
	err := h.Collaboration.Remove(c.Request.Context(), mustUser(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListComments 评论列表，?scene=N 过滤
func (h *Handler) ListComments(c *gin.Context) {
	scene, err := sceneFilter(c)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	comments, err := h.Collaboration.Comments(c.Request.Context(), mustUser(c), c.Param("id"), scene)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, gin.H{"comments": comments})
}

// AddComment 发表评论
func (h *Handler) AddComment(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	in, err := validation.Comment(body)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	comment, err := h.Collaboration.AddComment(c.Request.Context(), mustUser(c), c.Param("id"), in)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Created(c, comment)
}

// ListActivity 最近的活动记录
func (h *Handler) ListActivity(c *gin.Context) {
	activity, err := h.Collaboration.Activity(c.Request.Context(), mustUser(c), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, gin.H{"activity": activity})
}

// sceneFilter 解析 ?scene=N
func sceneFilter(c *gin.Context) (*int, error) {
	raw := c.Query("scene")
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return nil, apperrors.NewValidationError("scene must be a positive integer", err)
	}
	return &n, nil
}
