// ABOUTME: Community feed view with markdown posts and moderation flags.
// ABOUTME: Moderation tools appear only while the view is editable.

package views

import (
	"fmt"
	"html/template"
	"sync"

	"github.com/jfeddern/OpsDeck/internal/types"
	"github.com/sirupsen/logrus"
)

// PostView is a post with its rendered markdown
type PostView struct {
	types.Post
	HTML template.HTML `json:"html"`
}

// CommunityBody is the community page payload
type CommunityBody struct {
	Moderation bool       `json:"moderation"`
	Posts      []PostView `json:"posts"`
}

// Community is the research community feed
type Community struct {
	deps Deps

	mu       sync.Mutex
	editable bool
	posts    []types.Post
}

func NewCommunity(deps Deps) *Community {
	return &Community{
		deps:  deps.withDefaults(),
		posts: seedPosts(),
	}
}

func (c *Community) Mount(editable bool) { c.SetEditable(editable) }

func (c *Community) SetEditable(editable bool) {
	c.mu.Lock()
	c.editable = editable
	c.mu.Unlock()
}

func (c *Community) Unmount() { c.SetEditable(false) }

// Flag toggles the moderation flag on a post
func (c *Community) Flag(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.editable {
		return ErrReadOnly
	}
	for i := range c.posts {
		if c.posts[i].ID == id {
			c.posts[i].Flagged = !c.posts[i].Flagged
			c.deps.Logger.WithFields(logrus.Fields{
				"post":    id,
				"flagged": c.posts[i].Flagged,
			}).Info("Post moderation changed")
			return nil
		}
	}
	return fmt.Errorf("post %q: %w", id, ErrNotFound)
}

func (c *Community) Render() Page {
	c.mu.Lock()
	posts := append([]types.Post(nil), c.posts...)
	editable := c.editable
	c.mu.Unlock()

	body := CommunityBody{Moderation: editable}
	for _, p := range posts {
		pv := PostView{Post: p}
		if html, err := RenderMarkdown(p.Content); err == nil {
			// goldmark omits raw HTML by default, so the output is safe to embed
			pv.HTML = template.HTML(html)
		} else {
			pv.HTML = template.HTML(template.HTMLEscapeString(p.Content))
		}
		body.Posts = append(body.Posts, pv)
	}

	page := Page{
		Kind:     KindCommunity,
		Title:    "Community Nexus",
		Subtitle: "Collaborate with fellow security researchers and share intel.",
		Editable: editable,
		Body:     body,
	}
	if editable {
		page.Banner = "Mod Tools Active"
	}
	return page
}
