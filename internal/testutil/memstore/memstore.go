// Package memstore is an in-memory implementation of the service
// repositories for tests. All operations serialize on one mutex, and
// WithinTx holds it for the whole transaction, restoring a snapshot when the
// callback fails.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/libris-lms/apiserver/internal/store"
	"github.com/libris-lms/apiserver/types"
)

const defaultListLimit = 20

type state struct {
	nextID     int
	users      map[int]types.User
	roles      map[int]types.Role
	authors    map[int]types.Author
	categories map[int]types.Category
	books      map[int]types.Book
	borrows    map[int]types.Borrow
}

func (s state) clone() state {
	return state{
		nextID:     s.nextID,
		users:      cloneMap(s.users),
		roles:      cloneMap(s.roles),
		authors:    cloneMap(s.authors),
		categories: cloneMap(s.categories),
		books:      cloneMap(s.books),
		borrows:    cloneMap(s.borrows),
	}
}

func cloneMap[V any](m map[int]V) map[int]V {
	out := make(map[int]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store holds every table in memory.
type Store struct {
	mu sync.Mutex
	st state
}

func New() *Store {
	return &Store{st: state{
		users:      map[int]types.User{},
		roles:      map[int]types.Role{},
		authors:    map[int]types.Author{},
		categories: map[int]types.Category{},
		books:      map[int]types.Book{},
		borrows:    map[int]types.Borrow{},
	}}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

func (s *Store) Roles() *RoleRepository {
	return &RoleRepository{s: s}
}

func (s *Store) Authors() *AuthorRepository {
	return &AuthorRepository{s: s}
}

func (s *Store) Categories() *CategoryRepository {
	return &CategoryRepository{s: s}
}

func (s *Store) Books() *BookRepository {
	return &BookRepository{s: s}
}

func (s *Store) Borrows() *BorrowRepository {
	return &BorrowRepository{s: s}
}

// Book returns the stored book row without joins.
func (s *Store) Book(id int) (types.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.st.books[id]
	return book, ok
}

// User returns the stored user row.
func (s *Store) User(id int) (types.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.st.users[id]
	return user, ok
}

// Borrow returns the stored borrow row.
func (s *Store) Borrow(id int) (types.Borrow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	borrow, ok := s.st.borrows[id]
	return borrow, ok
}

// PutBorrow overwrites a borrow row, for tests that need backdated records.
func (s *Store) PutBorrow(borrow types.Borrow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.borrows[borrow.ID] = borrow
}

// OpenBorrows counts the user's unreturned borrows.
func (s *Store) OpenBorrows(userID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.openBorrows(userID)
}

func (s *Store) id() int {
	s.st.nextID++
	return s.st.nextID
}

func (st *state) openBorrows(userID int) int {
	count := 0
	for _, borrow := range st.borrows {
		if borrow.UserID == userID && !borrow.Returned {
			count++
		}
	}
	return count
}

func (st *state) joinBook(book types.Book) types.Book {
	book.AuthorName = st.authors[book.AuthorID].Name
	book.CategoryName = nil
	if book.CategoryID != nil {
		if category, ok := st.categories[*book.CategoryID]; ok {
			name := category.Name
			book.CategoryName = &name
		}
	}
	return book
}

func (st *state) joinBorrow(borrow types.Borrow) types.Borrow {
	borrow.Username = st.users[borrow.UserID].Username
	borrow.BookTitle = st.books[borrow.BookID].Title
	return borrow
}

func newAudit(actorID int) types.Audit {
	now := time.Now()
	return types.Audit{CreatedAt: now, UpdatedAt: now, CreatedBy: nullableID(actorID)}
}

func touch(audit *types.Audit, actorID int) {
	audit.UpdatedAt = time.Now()
	audit.UpdatedBy = nullableID(actorID)
}

func nullableID(id int) *int {
	if id < 1 {
		return nil
	}
	return &id
}

func values[V any](m map[int]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func page[T any](items []T, offset, limit int) ([]T, int) {
	total := len(items)
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = defaultListLimit
	}
	if offset >= total {
		return []T{}, total
	}
	end := min(offset+limit, total)
	return items[offset:end], total
}

// sortBy orders items by a client ordering such as "-name", falling back to
// the given default for unknown fields. Ties break on id.
func sortBy[T any](items []T, ordering, fallback string, keys map[string]func(a, b T) int, id func(T) int) {
	resolve := func(raw string) (func(a, b T) int, bool, bool) {
		raw = strings.TrimSpace(raw)
		cmpFn, ok := keys[strings.TrimPrefix(raw, "-")]
		return cmpFn, strings.HasPrefix(raw, "-"), ok
	}
	cmpFn, desc, ok := resolve(ordering)
	if !ok {
		cmpFn, desc, _ = resolve(fallback)
	}
	slices.SortStableFunc(items, func(a, b T) int {
		c := cmpFn(a, b)
		if desc {
			c = -c
		}
		if c == 0 {
			return cmp.Compare(id(a), id(b))
		}
		return c
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

// UserRepository is the in-memory user table.
type UserRepository struct{ s *Store }

func (r *UserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.st.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.st.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) GetByLogin(_ context.Context, login string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	username := types.NormalizeUsername(login)
	var match *types.User
	for _, user := range r.s.st.users {
		if user.Username == username {
			return user, nil
		}
		if user.Email == login || (user.Phone != nil && *user.Phone == login) {
			if match == nil || user.ID < match.ID {
				u := user
				match = &u
			}
		}
	}
	if match == nil {
		return types.User{}, store.ErrNotFound
	}
	return *match, nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Username = types.NormalizeUsername(user.Username)
	for _, existing := range r.s.st.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrDuplicate
		}
		if user.Phone != nil && existing.Phone != nil && *existing.Phone == *user.Phone {
			return types.User{}, store.ErrDuplicate
		}
	}
	if user.RoleID != nil {
		if _, ok := r.s.st.roles[*user.RoleID]; !ok {
			return types.User{}, store.ErrInvalidReference
		}
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.ID = r.s.id()
	r.s.st.users[user.ID] = user
	return user, nil
}

// Save overwrites a user row, for tests that need admins or preset penalties.
func (r *UserRepository) Save(user types.User) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.users[user.ID] = user
}

func (r *UserRepository) ResetPenaltyPoints(_ context.Context, id int, actorID int) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.st.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.PenaltyPoints = 0
	touch(&user.Audit, actorID)
	r.s.st.users[id] = user
	return user, nil
}

func (r *UserRepository) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := &r.s.st
	if _, ok := st.users[id]; !ok {
		return store.ErrNotFound
	}
	for borrowID, borrow := range st.borrows {
		if borrow.UserID != id {
			continue
		}
		if !borrow.Returned {
			book := st.books[borrow.BookID]
			book.AvailableCopies++
			st.books[book.ID] = book
		}
		delete(st.borrows, borrowID)
	}
	delete(st.users, id)
	return nil
}

// RoleRepository is the in-memory role table.
type RoleRepository struct{ s *Store }

func (r *RoleRepository) List(_ context.Context, offset, limit int) ([]types.Role, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	roles := values(r.s.st.roles)
	slices.SortFunc(roles, func(a, b types.Role) int { return cmp.Compare(b.ID, a.ID) })
	items, total := page(roles, offset, limit)
	return items, total, nil
}

func (r *RoleRepository) Get(_ context.Context, id int) (types.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.st.roles[id]
	if !ok {
		return types.Role{}, store.ErrNotFound
	}
	return role, nil
}

func (r *RoleRepository) Create(_ context.Context, role types.Role, actorID int) (types.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.roles {
		if existing.Name == role.Name {
			return types.Role{}, store.ErrDuplicate
		}
	}
	role.Audit = newAudit(actorID)
	role.ID = r.s.id()
	r.s.st.roles[role.ID] = role
	return role, nil
}

func (r *RoleRepository) Update(_ context.Context, role types.Role, actorID int) (types.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.st.roles[role.ID]
	if !ok {
		return types.Role{}, store.ErrNotFound
	}
	for _, existing := range r.s.st.roles {
		if existing.ID != role.ID && existing.Name == role.Name {
			return types.Role{}, store.ErrDuplicate
		}
	}
	current.Name = role.Name
	touch(&current.Audit, actorID)
	r.s.st.roles[role.ID] = current
	return current, nil
}

func (r *RoleRepository) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.roles[id]; !ok {
		return store.ErrNotFound
	}
	for userID, user := range r.s.st.users {
		if user.RoleID != nil && *user.RoleID == id {
			user.RoleID = nil
			r.s.st.users[userID] = user
		}
	}
	delete(r.s.st.roles, id)
	return nil
}

// AuthorRepository is the in-memory author table.
type AuthorRepository struct{ s *Store }

var authorOrdering = map[string]func(a, b types.Author) int{
	"id":         func(a, b types.Author) int { return cmp.Compare(a.ID, b.ID) },
	"name":       func(a, b types.Author) int { return cmp.Compare(a.Name, b.Name) },
	"created_at": func(a, b types.Author) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (r *AuthorRepository) List(_ context.Context, search, ordering string, offset, limit int) ([]types.Author, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var authors []types.Author
	for _, author := range r.s.st.authors {
		if search == "" || containsFold(author.Name, search) || containsFold(author.Bio, search) {
			authors = append(authors, author)
		}
	}
	sortBy(authors, ordering, "name", authorOrdering, func(a types.Author) int { return a.ID })
	items, total := page(authors, offset, limit)
	return items, total, nil
}

func (r *AuthorRepository) Get(_ context.Context, id int) (types.Author, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	author, ok := r.s.st.authors[id]
	if !ok {
		return types.Author{}, store.ErrNotFound
	}
	return author, nil
}

func (r *AuthorRepository) Create(_ context.Context, author types.Author, actorID int) (types.Author, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	author.Audit = newAudit(actorID)
	author.ID = r.s.id()
	r.s.st.authors[author.ID] = author
	return author, nil
}

func (r *AuthorRepository) Update(_ context.Context, author types.Author, actorID int) (types.Author, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.st.authors[author.ID]
	if !ok {
		return types.Author{}, store.ErrNotFound
	}
	current.Name = author.Name
	current.Bio = author.Bio
	touch(&current.Audit, actorID)
	r.s.st.authors[author.ID] = current
	return current, nil
}

func (r *AuthorRepository) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := &r.s.st
	if _, ok := st.authors[id]; !ok {
		return store.ErrNotFound
	}
	for bookID, book := range st.books {
		if book.AuthorID != id {
			continue
		}
		for borrowID, borrow := range st.borrows {
			if borrow.BookID == bookID {
				delete(st.borrows, borrowID)
			}
		}
		delete(st.books, bookID)
	}
	delete(st.authors, id)
	return nil
}

// CategoryRepository is the in-memory category table.
type CategoryRepository struct{ s *Store }

var categoryOrdering = map[string]func(a, b types.Category) int{
	"id":         func(a, b types.Category) int { return cmp.Compare(a.ID, b.ID) },
	"name":       func(a, b types.Category) int { return cmp.Compare(a.Name, b.Name) },
	"created_at": func(a, b types.Category) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (r *CategoryRepository) List(_ context.Context, search, ordering string, offset, limit int) ([]types.Category, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var categories []types.Category
	for _, category := range r.s.st.categories {
		if search == "" || containsFold(category.Name, search) {
			categories = append(categories, category)
		}
	}
	sortBy(categories, ordering, "name", categoryOrdering, func(c types.Category) int { return c.ID })
	items, total := page(categories, offset, limit)
	return items, total, nil
}

func (r *CategoryRepository) Get(_ context.Context, id int) (types.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	category, ok := r.s.st.categories[id]
	if !ok {
		return types.Category{}, store.ErrNotFound
	}
	return category, nil
}

func (r *CategoryRepository) Create(_ context.Context, category types.Category, actorID int) (types.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.categories {
		if existing.Name == category.Name {
			return types.Category{}, store.ErrDuplicate
		}
	}
	category.Audit = newAudit(actorID)
	category.ID = r.s.id()
	r.s.st.categories[category.ID] = category
	return category, nil
}

func (r *CategoryRepository) Update(_ context.Context, category types.Category, actorID int) (types.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.st.categories[category.ID]
	if !ok {
		return types.Category{}, store.ErrNotFound
	}
	for _, existing := range r.s.st.categories {
		if existing.ID != category.ID && existing.Name == category.Name {
			return types.Category{}, store.ErrDuplicate
		}
	}
	current.Name = category.Name
	touch(&current.Audit, actorID)
	r.s.st.categories[category.ID] = current
	return current, nil
}

func (r *CategoryRepository) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := &r.s.st
	if _, ok := st.categories[id]; !ok {
		return store.ErrNotFound
	}
	for bookID, book := range st.books {
		if book.CategoryID != nil && *book.CategoryID == id {
			book.CategoryID = nil
			st.books[bookID] = book
		}
	}
	delete(st.categories, id)
	return nil
}

// BookRepository is the in-memory book table.
type BookRepository struct{ s *Store }

var bookOrdering = map[string]func(a, b types.Book) int{
	"id":               func(a, b types.Book) int { return cmp.Compare(a.ID, b.ID) },
	"title":            func(a, b types.Book) int { return cmp.Compare(a.Title, b.Title) },
	"name":             func(a, b types.Book) int { return cmp.Compare(a.Title, b.Title) },
	"created_at":       func(a, b types.Book) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"available_copies": func(a, b types.Book) int { return cmp.Compare(a.AvailableCopies, b.AvailableCopies) },
}

func (r *BookRepository) List(_ context.Context, filter types.BookFilter) ([]types.Book, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := &r.s.st
	var books []types.Book
	for _, book := range st.books {
		if filter.Search != "" && !containsFold(book.Title, filter.Search) && !containsFold(book.Description, filter.Search) {
			continue
		}
		if filter.AuthorID > 0 && book.AuthorID != filter.AuthorID {
			continue
		}
		if filter.CategoryID > 0 && (book.CategoryID == nil || *book.CategoryID != filter.CategoryID) {
			continue
		}
		if filter.AvailableOnly && book.AvailableCopies < 1 {
			continue
		}
		books = append(books, st.joinBook(book))
	}
	sortBy(books, filter.Ordering, "title", bookOrdering, func(b types.Book) int { return b.ID })
	items, total := page(books, filter.Offset, filter.Limit)
	return items, total, nil
}

func (r *BookRepository) Get(_ context.Context, id int) (types.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	book, ok := r.s.st.books[id]
	if !ok {
		return types.Book{}, store.ErrNotFound
	}
	return r.s.st.joinBook(book), nil
}

func (r *BookRepository) Create(_ context.Context, book types.Book, actorID int) (types.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.st.checkBookRefs(book); err != nil {
		return types.Book{}, err
	}
	book.AvailableCopies = book.TotalCopies
	book.Audit = newAudit(actorID)
	book.ID = r.s.id()
	r.s.st.books[book.ID] = book
	return r.s.st.joinBook(book), nil
}

func (r *BookRepository) Update(_ context.Context, id int, actorID int, mutate func(current types.Book) (types.Book, error)) (types.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.st.books[id]
	if !ok {
		return types.Book{}, store.ErrNotFound
	}
	next, err := mutate(r.s.st.joinBook(current))
	if err != nil {
		return types.Book{}, err
	}
	if err := r.s.st.checkBookRefs(next); err != nil {
		return types.Book{}, err
	}
	if next.AvailableCopies < 0 || next.AvailableCopies > next.TotalCopies {
		return types.Book{}, store.ErrCopiesInUse
	}

	current.Title = next.Title
	current.Description = next.Description
	current.AuthorID = next.AuthorID
	current.CategoryID = next.CategoryID
	current.TotalCopies = next.TotalCopies
	current.AvailableCopies = next.AvailableCopies
	touch(&current.Audit, actorID)
	r.s.st.books[id] = current
	return r.s.st.joinBook(current), nil
}

func (r *BookRepository) SetCover(_ context.Context, id int, key string, actorID int) (types.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	book, ok := r.s.st.books[id]
	if !ok {
		return types.Book{}, store.ErrNotFound
	}
	book.CoverKey = &key
	touch(&book.Audit, actorID)
	r.s.st.books[id] = book
	return r.s.st.joinBook(book), nil
}

func (r *BookRepository) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := &r.s.st
	if _, ok := st.books[id]; !ok {
		return store.ErrNotFound
	}
	for borrowID, borrow := range st.borrows {
		if borrow.BookID == id {
			delete(st.borrows, borrowID)
		}
	}
	delete(st.books, id)
	return nil
}

func (st *state) checkBookRefs(book types.Book) error {
	if _, ok := st.authors[book.AuthorID]; !ok {
		return store.ErrInvalidReference
	}
	if book.CategoryID != nil {
		if _, ok := st.categories[*book.CategoryID]; !ok {
			return store.ErrInvalidReference
		}
	}
	return nil
}

// BorrowRepository is the in-memory borrow ledger.
type BorrowRepository struct{ s *Store }

var borrowOrdering = map[string]func(a, b types.Borrow) int{
	"id":          func(a, b types.Borrow) int { return cmp.Compare(a.ID, b.ID) },
	"borrow_date": func(a, b types.Borrow) int { return a.BorrowDate.Compare(b.BorrowDate) },
	"due_date":    func(a, b types.Borrow) int { return a.DueDate.Compare(b.DueDate) },
	"return_date": func(a, b types.Borrow) int { return compareTimePtr(a.ReturnDate, b.ReturnDate) },
}

func (r *BorrowRepository) Get(_ context.Context, id int) (types.Borrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	borrow, ok := r.s.st.borrows[id]
	if !ok {
		return types.Borrow{}, store.ErrNotFound
	}
	return r.s.st.joinBorrow(borrow), nil
}

func (r *BorrowRepository) List(_ context.Context, filter types.BorrowFilter) ([]types.Borrow, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := &r.s.st
	var borrows []types.Borrow
	for _, borrow := range st.borrows {
		if filter.UserID > 0 && borrow.UserID != filter.UserID {
			continue
		}
		if filter.BookID > 0 && borrow.BookID != filter.BookID {
			continue
		}
		if filter.Returned != nil && borrow.Returned != *filter.Returned {
			continue
		}
		borrows = append(borrows, st.joinBorrow(borrow))
	}
	sortBy(borrows, filter.Ordering, "-borrow_date", borrowOrdering, func(b types.Borrow) int { return b.ID })
	items, total := page(borrows, filter.Offset, filter.Limit)
	return items, total, nil
}

// WithinTx runs fn while holding the store lock. State changes made by fn are
// discarded when it returns an error.
func (r *BorrowRepository) WithinTx(_ context.Context, fn func(tx store.LendingTx) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	snapshot := r.s.st.clone()
	if err := fn(&lendingTx{s: r.s}); err != nil {
		r.s.st = snapshot
		return err
	}
	return nil
}

type lendingTx struct{ s *Store }

func (t *lendingTx) LockUser(_ context.Context, id int) (types.User, error) {
	user, ok := t.s.st.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (t *lendingTx) LockBook(_ context.Context, id int) (types.Book, error) {
	book, ok := t.s.st.books[id]
	if !ok {
		return types.Book{}, store.ErrNotFound
	}
	return t.s.st.joinBook(book), nil
}

func (t *lendingTx) LockBorrow(_ context.Context, id int) (types.Borrow, error) {
	borrow, ok := t.s.st.borrows[id]
	if !ok {
		return types.Borrow{}, store.ErrNotFound
	}
	return t.s.st.joinBorrow(borrow), nil
}

func (t *lendingTx) CountOpenBorrows(_ context.Context, userID int) (int, error) {
	return t.s.st.openBorrows(userID), nil
}

func (t *lendingTx) DecrementAvailable(_ context.Context, bookID int, actorID int) error {
	book, ok := t.s.st.books[bookID]
	if !ok || book.AvailableCopies < 1 {
		return store.ErrNoCopies
	}
	book.AvailableCopies--
	touch(&book.Audit, actorID)
	t.s.st.books[bookID] = book
	return nil
}

func (t *lendingTx) IncrementAvailable(_ context.Context, bookID int, actorID int) error {
	book, ok := t.s.st.books[bookID]
	if !ok {
		return store.ErrNotFound
	}
	if book.AvailableCopies+1 > book.TotalCopies {
		return store.ErrCopiesInUse
	}
	book.AvailableCopies++
	touch(&book.Audit, actorID)
	t.s.st.books[bookID] = book
	return nil
}

func (t *lendingTx) InsertBorrow(_ context.Context, borrow types.Borrow, actorID int) (types.Borrow, error) {
	if _, ok := t.s.st.users[borrow.UserID]; !ok {
		return types.Borrow{}, store.ErrInvalidReference
	}
	if _, ok := t.s.st.books[borrow.BookID]; !ok {
		return types.Borrow{}, store.ErrInvalidReference
	}
	borrow.Returned = false
	borrow.ReturnDate = nil
	borrow.Audit = newAudit(actorID)
	borrow.ID = t.s.id()
	t.s.st.borrows[borrow.ID] = borrow
	return t.s.st.joinBorrow(borrow), nil
}

func (t *lendingTx) CloseBorrow(_ context.Context, id int, returnedAt time.Time, actorID int) error {
	borrow, ok := t.s.st.borrows[id]
	if !ok || borrow.Returned {
		return store.ErrNotFound
	}
	borrow.Returned = true
	borrow.ReturnDate = &returnedAt
	touch(&borrow.Audit, actorID)
	t.s.st.borrows[id] = borrow
	return nil
}

func (t *lendingTx) AddPenaltyPoints(_ context.Context, userID int, points int, actorID int) (int, error) {
	user, ok := t.s.st.users[userID]
	if !ok {
		return 0, store.ErrNotFound
	}
	user.PenaltyPoints += points
	touch(&user.Audit, actorID)
	t.s.st.users[userID] = user
	return user.PenaltyPoints, nil
}
