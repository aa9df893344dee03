package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
	"github.com/bekzodov/kutubxona-bot/internal/core/ports"
)

// Fixture tree used across the tests:
//
//	Root ── Fiction ── Novels (leaf, 2 documents)
//	  │        └────── Poetry (leaf, empty)
//	  └──── Science (leaf, empty)
const (
	catFiction = int64(1)
	catScience = int64(2)
	catNovels  = int64(11)
	catPoetry  = int64(12)
)

type catalogFake struct {
	categories []domain.Category
	docs       map[int64][]domain.Document
	created    []domain.Document
	failFiles  map[string]bool
	listErr    error
	docsErr    error
}

func newCatalogFake() *catalogFake {
	fiction := catFiction
	return &catalogFake{
		categories: []domain.Category{
			{ID: catFiction, Name: "Fiction"},
			{ID: catScience, Name: "Science"},
			{ID: catNovels, Name: "Novels", ParentID: &fiction},
			{ID: catPoetry, Name: "Poetry", ParentID: &fiction},
		},
		docs: map[int64][]domain.Document{
			catNovels: {
				{ID: "doc-new", CategoryID: catNovels, FileID: "file-new", Caption: "newer"},
				{ID: "doc-old", CategoryID: catNovels, FileID: "file-old", Caption: "older"},
			},
		},
	}
}

func (f *catalogFake) ChildrenOf(_ context.Context, parentID *int64) ([]domain.Category, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Category
	for _, c := range f.categories {
		if samePosition(c.ParentID, parentID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *catalogFake) FindByNameAndParent(_ context.Context, name string, parentID *int64) (*domain.Category, error) {
	for _, c := range f.categories {
		if c.Name == name && samePosition(c.ParentID, parentID) {
			found := c
			return &found, nil
		}
	}
	return nil, domain.WrapError(domain.ErrCategoryNotFound, "find category", errors.New("no match"))
}

func (f *catalogFake) GetCategory(_ context.Context, id int64) (*domain.Category, error) {
	for _, c := range f.categories {
		if c.ID == id {
			found := c
			return &found, nil
		}
	}
	return nil, domain.WrapError(domain.ErrCategoryNotFound, "get category", errors.New("no match"))
}

func (f *catalogFake) DocumentsOf(_ context.Context, categoryID int64) ([]domain.Document, error) {
	if f.docsErr != nil {
		return nil, f.docsErr
	}
	return f.docs[categoryID], nil
}

func (f *catalogFake) CreateDocument(_ context.Context, doc *domain.Document) error {
	if f.failFiles[doc.FileID] {
		return errors.New("insert failed")
	}
	f.created = append(f.created, *doc)
	return nil
}

type renderCall struct {
	prompt string
	labels []string
	tokens []string
	back   bool
}

type sentDoc struct {
	ref     string
	caption string
	at      time.Time
}

type transportFake struct {
	renders  []renderCall
	notices  []string
	sent     []sentDoc
	failRefs map[string]bool
}

func (f *transportFake) RenderChoices(_ context.Context, _ string, prompt string, choices []ports.Choice, backOption bool) error {
	call := renderCall{prompt: prompt, back: backOption}
	for _, c := range choices {
		call.labels = append(call.labels, c.Label)
		call.tokens = append(call.tokens, c.Token)
	}
	f.renders = append(f.renders, call)
	return nil
}

func (f *transportFake) SendDocument(_ context.Context, _ string, contentRef, caption string) error {
	f.sent = append(f.sent, sentDoc{ref: contentRef, caption: caption, at: time.Now()})
	if f.failRefs[contentRef] {
		return errors.New("send failed")
	}
	return nil
}

func (f *transportFake) SendNotice(_ context.Context, _ string, text string) error {
	f.notices = append(f.notices, text)
	return nil
}

func (f *transportFake) lastRender() renderCall {
	return f.renders[len(f.renders)-1]
}

type gateFake struct {
	allowed map[string]bool
}

func (f *gateFake) IsAuthorized(_ context.Context, identity string) bool {
	return f.allowed[identity]
}

type publisherFake struct {
	published []string
}

func (f *publisherFake) PublishDocumentCommitted(_ context.Context, documentID string) error {
	f.published = append(f.published, documentID)
	return nil
}

type sessionsFake struct {
	m map[string]*domain.Session
}

func newSessionsFake() *sessionsFake {
	return &sessionsFake{m: make(map[string]*domain.Session)}
}

func (f *sessionsFake) Get(identity string) *domain.Session {
	if s, ok := f.m[identity]; ok {
		return s
	}
	s := domain.NewSession(identity)
	f.m[identity] = s
	return s
}

func (f *sessionsFake) Len() int { return len(f.m) }
