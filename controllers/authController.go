package controllers

import (
	"net/http"
	"time"

	"civicsync/middlewares"
	"civicsync/models"
	"civicsync/services"
	"civicsync/utils"

	"github.com/gin-gonic/gin"
)

// AuthController handles registration, login and account activation.
type AuthController struct {
	Accounts     *services.AccountService
	Secret       string
	TTL          time.Duration
	SecureCookie bool
	Now          func() time.Time
}

type session struct {
	Token   string             `json:"token"`
	Account models.UserAccount `json:"account"`
}

// Register creates a citizen account and signs it in.
func (a *AuthController) Register(c *gin.Context) {
	var input services.RegisterInput
	if !bindJSON(c, &input) {
		return
	}
	acc, err := a.Accounts.RegisterCitizen(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	a.signIn(c, http.StatusCreated, acc)
}

func (a *AuthController) Login(c *gin.Context) {
	var input services.LoginInput
	if !bindJSON(c, &input) {
		return
	}
	acc, err := a.Accounts.Login(c.Request.Context(), input)
	if err != nil {
		if models.KindOf(err) == models.KindAuthorization {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": models.ReasonOf(err), "kind": models.KindAuthorization})
			return
		}
		respondError(c, err)
		return
	}
	a.signIn(c, http.StatusOK, acc)
}

// Activate sets the first password of an approved official and signs them in.
func (a *AuthController) Activate(c *gin.Context) {
	var input services.ActivateInput
	if !bindJSON(c, &input) {
		return
	}
	acc, err := a.Accounts.Activate(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	a.signIn(c, http.StatusOK, acc)
}

func (a *AuthController) Me(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	acc, err := a.Accounts.Get(c.Request.Context(), actor.ActorID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (a *AuthController) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middlewares.AuthCookie, "", -1, "/", "", a.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (a *AuthController) signIn(c *gin.Context, status int, acc models.UserAccount) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	token, err := utils.GenerateToken(a.Secret, acc.ID, a.TTL, now())
	if err != nil {
		respondError(c, models.Upstream("issue token", err))
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middlewares.AuthCookie, token, int(a.TTL.Seconds()), "/", "", a.SecureCookie, true)
	c.JSON(status, session{Token: token, Account: acc})
}
