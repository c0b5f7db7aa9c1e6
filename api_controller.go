package authui

import (
	"net/http"
	"strconv"

	"github.com/goliatone/go-auth-ui/auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	defaultSelectLimit = 10
	maxSelectLimit     = 100
)

// SelectOption is a single entry of the user select endpoint
type SelectOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SelectResponse is the payload of the user select endpoint
type SelectResponse struct {
	Results []SelectOption `json:"results"`
	Total   int            `json:"total"`
	More    bool           `json:"more"`
}

// FollowResponse is the payload of the follow endpoints
type FollowResponse struct {
	Following bool `json:"following"`
	Followers int  `json:"followers"`
}

// UsersSelect searches users by first or last name for select widgets.
// Administrators see everybody, other users only active public profiles.
func (c *Controller) UsersSelect(ctx router.Context) error {
	viewer := UserFromContext(ctx)
	if viewer.IsAnonymous() {
		return c.jsonError(ctx, auth.ErrForbidden)
	}

	skip := queryInt(ctx, "skip", 0)
	if skip < 0 {
		skip = 0
	}

	limit := queryInt(ctx, "limit", defaultSelectLimit)
	if limit <= 0 {
		limit = defaultSelectLimit
	}
	if limit > maxSelectLimit {
		limit = maxSelectLimit
	}

	q := auth.UserQuery{
		Search:  ctx.Query("q", ""),
		Skip:    skip,
		Limit:   limit,
		OrderBy: "first_name",
	}
	if !viewer.IsAdmin() {
		q.Status = auth.UserStatusActive
		q.PublicOnly = true
	}

	users, total, err := c.Service.FindUsers(ctx.Context(), q)
	if err != nil {
		c.Logger.Error("user search failed", "error", err)
		return c.jsonError(ctx, err)
	}

	out := SelectResponse{
		Results: make([]SelectOption, 0, len(users)),
		Total:   total,
		More:    skip+len(users) < total,
	}
	for _, u := range users {
		out.Results = append(out.Results, SelectOption{
			ID:   u.ID.String(),
			Text: userOptionTitle(u, viewer.IsAdmin()),
		})
	}

	return ctx.JSON(http.StatusOK, out)
}

// Follow makes the current user follow the user with uid
func (c *Controller) Follow(ctx router.Context) error {
	return c.toggleFollow(ctx, true)
}

// Unfollow stops the current user following the user with uid
func (c *Controller) Unfollow(ctx router.Context) error {
	return c.toggleFollow(ctx, false)
}

func (c *Controller) toggleFollow(ctx router.Context, follow bool) error {
	viewer := UserFromContext(ctx)
	if viewer.IsAnonymous() {
		return c.jsonError(ctx, auth.ErrForbidden)
	}

	target, err := c.Service.GetUser(ctx.Context(), ctx.Param("uid"))
	if err != nil {
		return c.jsonError(ctx, err)
	}

	if viewer.Is(target) {
		return c.jsonError(ctx, goerrors.New("users can not follow themselves", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest))
	}

	if follow {
		err = c.Service.Follow(ctx.Context(), viewer, target)
	} else {
		err = c.Service.Unfollow(ctx.Context(), viewer, target)
	}
	if err != nil {
		c.Logger.Error("follow toggle failed", "follower", viewer.ID.String(), "following", target.ID.String(), "error", err)
		return c.jsonError(ctx, err)
	}

	followers, _, err := c.Service.FollowCounts(ctx.Context(), target)
	if err != nil {
		return c.jsonError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, FollowResponse{
		Following: follow,
		Followers: followers,
	})
}

func (c *Controller) jsonError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}
	return ctx.JSON(statusCode(richErr), map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func queryInt(ctx router.Context, key string, def int) int {
	v, err := strconv.Atoi(ctx.Query(key, ""))
	if err != nil {
		return def
	}
	return v
}
