package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/marutilaminates/laminates_backend/models"
	"github.com/marutilaminates/laminates_backend/utils"
)

// registerValidators installs the domain tags and reports json names in
// validation errors.
func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return models.RegisterValidators(v)
}

// bindError converts binding failures into ValidationFailed on the first
// offending field.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return utils.Validation(fieldErrs[0].Field(), strings.Join(msgs, "; "))
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return utils.Validation(typeErr.Field, fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type))
	case errors.As(err, &syntaxErr):
		return utils.Validation("body", "malformed JSON body")
	}
	return utils.Validation("body", err.Error())
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	case "email":
		return fe.Field() + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}

func bindPage(c *gin.Context) (models.Page, error) {
	var page models.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		return page, utils.Validation("page", "page and limit must be integers")
	}
	return page, nil
}

// crud wires the five standard routes of one entity. Deletes are admin only.
type crud[T any, In any, F any] struct {
	name   string
	list   func(c *gin.Context, filter F, page models.Page) (*models.PageResult[T], error)
	get    func(c *gin.Context, id string) (*T, error)
	create func(c *gin.Context, input *In) (*T, error)
	update func(c *gin.Context, id string, input *In) (*T, error)
	remove func(c *gin.Context, id string) (*T, error)
}

func (h crud[T, In, F]) register(g *gin.RouterGroup, admin gin.HandlerFunc) {
	g.GET("", h.listHandler)
	g.POST("", h.createHandler)
	g.GET("/:id", h.getHandler)
	g.PUT("/:id", h.updateHandler)
	g.DELETE("/:id", admin, h.deleteHandler)
}

func (h crud[T, In, F]) listHandler(c *gin.Context) {
	var filter F
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}
	page, err := bindPage(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	result, err := h.list(c, filter, page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, h.name+"s retrieved successfully", result)
}

func (h crud[T, In, F]) getHandler(c *gin.Context) {
	row, err := h.get(c, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, h.name+" retrieved successfully", row)
}

func (h crud[T, In, F]) createHandler(c *gin.Context) {
	var input In
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}
	row, err := h.create(c, &input)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusCreated, h.name+" created successfully", row)
}

func (h crud[T, In, F]) updateHandler(c *gin.Context) {
	var input In
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}
	row, err := h.update(c, c.Param("id"), &input)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, h.name+" updated successfully", row)
}

func (h crud[T, In, F]) deleteHandler(c *gin.Context) {
	row, err := h.remove(c, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, h.name+" deleted successfully", row)
}

type searchFilter struct {
	Search string `form:"search"`
}

func referenceRoutes() crud[models.Reference, models.NewReference, models.ReferenceFilter] {
	return crud[models.Reference, models.NewReference, models.ReferenceFilter]{
		name: "Reference",
		list: func(c *gin.Context, f models.ReferenceFilter, p models.Page) (*models.PageResult[models.Reference], error) {
			return models.ListReferences(c.Request.Context(), f, p)
		},
		get: func(c *gin.Context, id string) (*models.Reference, error) {
			return models.GetReference(c.Request.Context(), id)
		},
		create: func(c *gin.Context, in *models.NewReference) (*models.Reference, error) {
			return models.CreateReference(c.Request.Context(), in)
		},
		update: func(c *gin.Context, id string, in *models.NewReference) (*models.Reference, error) {
			return models.UpdateReference(c.Request.Context(), id, in)
		},
		remove: func(c *gin.Context, id string) (*models.Reference, error) {
			return models.DeleteReference(c.Request.Context(), id)
		},
	}
}

func customerRoutes() crud[models.Customer, models.NewCustomer, models.CustomerFilter] {
	return crud[models.Customer, models.NewCustomer, models.CustomerFilter]{
		name: "Customer",
		list: func(c *gin.Context, f models.CustomerFilter, p models.Page) (*models.PageResult[models.Customer], error) {
			return models.ListCustomers(c.Request.Context(), f, p)
		},
		get: func(c *gin.Context, id string) (*models.Customer, error) {
			return models.GetCustomer(c.Request.Context(), id)
		},
		create: func(c *gin.Context, in *models.NewCustomer) (*models.Customer, error) {
			return models.CreateCustomer(c.Request.Context(), in)
		},
		update: func(c *gin.Context, id string, in *models.NewCustomer) (*models.Customer, error) {
			return models.UpdateCustomer(c.Request.Context(), id, in)
		},
		remove: func(c *gin.Context, id string) (*models.Customer, error) {
			return models.DeleteCustomer(c.Request.Context(), id)
		},
	}
}

func productRoutes() crud[models.Product, models.NewProduct, searchFilter] {
	return crud[models.Product, models.NewProduct, searchFilter]{
		name: "Product",
		list: func(c *gin.Context, f searchFilter, p models.Page) (*models.PageResult[models.Product], error) {
			return models.ListProducts(c.Request.Context(), f.Search, p)
		},
		get: func(c *gin.Context, id string) (*models.Product, error) {
			return models.GetProduct(c.Request.Context(), id)
		},
		create: func(c *gin.Context, in *models.NewProduct) (*models.Product, error) {
			return models.CreateProduct(c.Request.Context(), in)
		},
		update: func(c *gin.Context, id string, in *models.NewProduct) (*models.Product, error) {
			return models.UpdateProduct(c.Request.Context(), id, in)
		},
		remove: func(c *gin.Context, id string) (*models.Product, error) {
			return models.DeleteProduct(c.Request.Context(), id)
		},
	}
}

func locationRoutes() crud[models.Location, models.NewLocation, searchFilter] {
	return crud[models.Location, models.NewLocation, searchFilter]{
		name: "Location",
		list: func(c *gin.Context, f searchFilter, p models.Page) (*models.PageResult[models.Location], error) {
			return models.ListLocations(c.Request.Context(), f.Search, p)
		},
		get: func(c *gin.Context, id string) (*models.Location, error) {
			return models.GetLocation(c.Request.Context(), id)
		},
		create: func(c *gin.Context, in *models.NewLocation) (*models.Location, error) {
			return models.CreateLocation(c.Request.Context(), in)
		},
		update: func(c *gin.Context, id string, in *models.NewLocation) (*models.Location, error) {
			return models.UpdateLocation(c.Request.Context(), id, in)
		},
		remove: func(c *gin.Context, id string) (*models.Location, error) {
			return models.DeleteLocation(c.Request.Context(), id)
		},
	}
}

func listUsersHandler(c *gin.Context) {
	page, err := bindPage(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	result, err := models.ListUsers(c.Request.Context(), page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "Users retrieved successfully", result)
}

func getUserHandler(c *gin.Context) {
	user, err := models.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "User retrieved successfully", user)
}

func createUserHandler(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}
	user, err := models.CreateUser(c.Request.Context(), &input)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusCreated, "User created successfully", user)
}

func updateUserHandler(c *gin.Context) {
	var input models.UpdateUser
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}
	user, err := models.UpdateUserById(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "User updated successfully", user)
}

func deleteUserHandler(c *gin.Context) {
	user, err := models.DeleteUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "User deleted successfully", user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}
	info, err := models.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "Login successful", info)
}

func meHandler(c *gin.Context) {
	id, _ := utils.GetUserIdFromContext(c.Request.Context())
	user, err := models.GetUser(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "User retrieved successfully", user)
}

func unitsHandler(c *gin.Context) {
	utils.RespondOK(c, http.StatusOK, "Units retrieved successfully", models.Units)
}

func referenceCategoriesHandler(c *gin.Context) {
	utils.RespondOK(c, http.StatusOK, "Reference categories retrieved successfully", models.ReferenceCategories)
}
