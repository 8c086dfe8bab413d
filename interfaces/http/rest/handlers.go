package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"uerp-backend/domain/schema"
	apperrors "uerp-backend/pkg/errors"
)

func (s *Server) handleCreate(info *schema.Info) gatedHandler {
	return func(w http.ResponseWriter, r *http.Request, caller *schema.AuthInfo) {
		model, err := s.decodeModel(r, info)
		if err != nil {
			respondError(w, s.logger, err)
			return
		}
		base := model.Meta()
		base.SetIdentity(info, base.ID)
		s.stamp(base, caller)

		doc, err := schema.ToDocument(model)
		if err != nil {
			respondError(w, s.logger, apperrors.NewBadRequest("could not encode model"))
			return
		}
		if err := s.coord.Create(r.Context(), info, doc); err != nil {
			respondError(w, s.logger, err)
			return
		}
		respond(w, http.StatusOK, model)
	}
}

func (s *Server) handleRead(info *schema.Info) gatedHandler {
	return func(w http.ResponseWriter, r *http.Request, caller *schema.AuthInfo) {
		id := chi.URLParam(r, "id")

		doc, err := s.coord.Read(r.Context(), info, id)
		if err != nil {
			respondError(w, s.logger, err)
			return
		}
		if caller != nil && info.AAA.RequiresOwner() && !caller.CheckAdmin() &&
			!caller.CheckAccount(schema.DocumentString(doc, "org"), schema.DocumentString(doc, "owner")) {
			respondError(w, s.logger, apperrors.NewForbidden("not the owner of "+id))
			return
		}
		respond(w, http.StatusOK, doc)
	}
}

func (s *Server) handleSearch(info *schema.Info) gatedHandler {
	return func(w http.ResponseWriter, r *http.Request, caller *schema.AuthInfo) {
		values := r.URL.Query()
		query, err := parseQuery(values)
		if err != nil {
			respondError(w, s.logger, err)
			return
		}
		query = s.scope(info, caller, query)

		docs, err := s.coord.Search(r.Context(), info, query, flagParam(values, paramArchive))
		if err != nil {
			respondError(w, s.logger, err)
			return
		}
		if docs == nil {
			docs = []schema.Document{}
		}
		respond(w, http.StatusOK, docs)
	}
}

func (s *Server) handleCount(info *schema.Info) gatedHandler {
	return func(w http.ResponseWriter, r *http.Request, caller *schema.AuthInfo) {
		values := r.URL.Query()
		query, err := parseQuery(values)
		if err != nil {
			respondError(w, s.logger, err)
			return
		}
		query = s.scope(info, caller, query)

		result, err := s.coord.Count(r.Context(), info, query, flagParam(values, paramArchive))
		if err != nil {
			respondError(w, s.logger, err)
			return
		}
		respond(w, http.StatusOK, schema.ModelCount{
			SRef:   info.SRef,
			URef:   info.Path,
			Query:  values.Get(paramFilter),
			Result: result,
		})
	}
}

func (s *Server) handleUpdate(info *schema.Info) gatedHandler {
	return func(w http.ResponseWriter, r *http.Request, caller *schema.AuthInfo) {
		id := chi.URLParam(r, "id")
		if err := s.checkOwner(r.Context(), info, id, caller); err != nil {
			respondError(w, s.logger, err)
			return
		}

		model, err := s.decodeModel(r, info)
		if err != nil {
			respondError(w, s.logger, err)
			return
		}
		base := model.Meta()
		if base.ID != "" && base.ID != id {
			respondError(w, s.logger, apperrors.NewBadRequest("body id does not match path id"))
			return
		}
		base.SetIdentity(info, id)
		s.stamp(base, caller)

		doc, err := schema.ToDocument(model)
		if err != nil {
			respondError(w, s.logger, apperrors.NewBadRequest("could not encode model"))
			return
		}
		if err := s.coord.Update(r.Context(), info, doc); err != nil {
			respondError(w, s.logger, err)
			return
		}
		respond(w, http.StatusOK, model)
	}
}

func (s *Server) handleDelete(info *schema.Info) gatedHandler {
	return func(w http.ResponseWriter, r *http.Request, caller *schema.AuthInfo) {
		id := chi.URLParam(r, "id")
		if err := s.checkOwner(r.Context(), info, id, caller); err != nil {
			respondError(w, s.logger, err)
			return
		}

		owner := ""
		if caller != nil {
			owner = caller.Username
		}
		if err := s.coord.Delete(r.Context(), info, id, owner, flagParam(r.URL.Query(), paramForce)); err != nil {
			respondError(w, s.logger, err)
			return
		}
		respond(w, http.StatusOK, schema.ModelStatus{
			ID:     id,
			SRef:   info.SRef,
			URef:   info.Path + "/" + id,
			Status: "deleted",
		})
	}
}

func (s *Server) decodeModel(r *http.Request, info *schema.Info) (schema.Model, error) {
	model := info.NewModel()
	if err := json.NewDecoder(r.Body).Decode(model); err != nil {
		return nil, apperrors.NewBadRequest("could not decode payload")
	}
	if err := s.validate.Struct(model); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}
	return model, nil
}

// stamp records the writer. Free routes keep whatever the payload
// carried.
func (s *Server) stamp(base *schema.Base, caller *schema.AuthInfo) {
	if caller != nil {
		base.Stamp(caller.Realm, caller.Username, false)
		return
	}
	base.Stamp(base.Org, base.Owner, false)
}
