package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"facturepro/internal/cache"
	"facturepro/internal/core"
	applog "facturepro/internal/log"
)

func clientsKey(profileID string) string  { return "clients:" + profileID }
func productsKey(profileID string) string { return "products:" + profileID }

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.storage.GetProfile(r.Context(), mux.Vars(r)["profileID"])
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(profile).Write(w)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}

	profile := req.toProfile(mux.Vars(r)["profileID"])
	if err := profile.Validate(); err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}
	if err := s.storage.UpsertProfile(r.Context(), profile); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}

	saved, err := s.storage.GetProfile(r.Context(), profile.ID)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentCatalog).
		InfoContext(r.Context(), "Profile saved", applog.FieldProfileID, saved.ID)
	NewJSONResponse().Body(saved).Write(w)
}

// requireProfile fails the request with 404 when the profile does not exist.
func (s *Server) requireProfile(w http.ResponseWriter, r *http.Request, profileID string) bool {
	if _, err := s.storage.GetProfile(r.Context(), profileID); err != nil {
		s.fail(w, r, applog.OpRead, err)
		return false
	}
	return true
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]
	clients, hit, err := cache.GetOrLoad[[]core.Client](s.clientsCache, clientsKey(profileID), func() ([]core.Client, error) {
		return s.storage.ListClients(r.Context(), profileID)
	})
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Clients listed",
		applog.FieldProfileID, profileID, "count", len(clients), "cache_hit", hit)
	NewJSONResponse().Body(append([]core.Client{}, clients...)).Write(w)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]
	var req clientRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}

	client := req.toClient(profileID)
	if err := client.Validate(); err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}
	if !s.requireProfile(w, r, profileID) {
		return
	}

	created, err := s.storage.CreateClient(r.Context(), client)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.clientsCache.Delete(clientsKey(profileID))
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.storage.DeleteClient(r.Context(), vars["profileID"], vars["id"]); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	s.clientsCache.Delete(clientsKey(vars["profileID"]))
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]
	products, hit, err := cache.GetOrLoad[[]core.Product](s.productsCache, productsKey(profileID), func() ([]core.Product, error) {
		return s.storage.ListProducts(r.Context(), profileID)
	})
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Products listed",
		applog.FieldProfileID, profileID, "count", len(products), "cache_hit", hit)
	NewJSONResponse().Body(append([]core.Product{}, products...)).Write(w)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]
	var req productRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}

	product := req.toProduct(profileID)
	if err := product.Validate(); err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}
	if !s.requireProfile(w, r, profileID) {
		return
	}

	created, err := s.storage.CreateProduct(r.Context(), product)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.productsCache.Delete(productsKey(profileID))
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.storage.DeleteProduct(r.Context(), vars["profileID"], vars["id"]); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	s.productsCache.Delete(productsKey(vars["profileID"]))
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
