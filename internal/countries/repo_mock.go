package countries

import (
	"context"
	"sort"
	"strings"
	"sync"
)

var _ countriesRepo = (*repoMock)(nil)

type repoMock struct {
	Countries map[string]*Country
	mutex     sync.Mutex
}

func newRepoMock() *repoMock {
	return &repoMock{
		Countries: make(map[string]*Country),
	}
}

func (r *repoMock) All(_ context.Context) ([]*Country, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var all []*Country
	for _, c := range r.Countries {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})
	return all, nil
}

func (r *repoMock) ByCode(_ context.Context, code string) (*Country, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c, ok := r.Countries[strings.ToUpper(code)]
	if !ok {
		return nil, ErrCountryNotFound
	}
	return c, nil
}

func (r *repoMock) ByID(_ context.Context, id int) (*Country, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, c := range r.Countries {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrCountryNotFound
}

func (r *repoMock) Count(_ context.Context) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.Countries), nil
}

func (r *repoMock) Insert(_ context.Context, country *Country) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Countries[country.Code]; ok {
		return false, nil
	}
	country.ID = len(r.Countries) + 1
	r.Countries[country.Code] = country
	return true, nil
}
