// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

//go:build integration

package integration

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/storefront/storefront/internal/auth"
	"github.com/storefront/storefront/internal/web"
)

func newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func submit(c *http.Client, path, email, password string) (*http.Response, string) {
	resp, err := c.PostForm(env.Server.URL+path, url.Values{"email": {email}, "password": {password}})
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, string(body)
}

func fetch(c *http.Client, path string) (*http.Response, string) {
	resp, err := c.Get(env.Server.URL + path)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, string(body)
}

func countRows(table string) int {
	var n int
	err := env.db.Pool().QueryRow(env.ctx, "SELECT count(*) FROM "+table).Scan(&n)
	Expect(err).NotTo(HaveOccurred())
	return n
}

var _ = Describe("Registration and login", func() {
	It("registers, rejects a duplicate, logs in and reaches the shop", func() {
		c := newClient()

		resp, _ := submit(c, "/register", "a@x.io", "pw1")
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		Expect(resp.Header.Get("Location")).To(Equal("/login"))

		resp, body := submit(c, "/register", "a@x.io", "pw2")
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		Expect(body).To(ContainSubstring("Email taken."))
		Expect(countRows("accounts")).To(Equal(1))

		resp, _ = submit(c, "/login", "a@x.io", "pw1")
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		Expect(resp.Header.Get("Location")).To(Equal("/shop"))

		resp, body = fetch(c, "/shop")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring("a@x.io"))
	})

	It("stores only the password hash", func() {
		submit(newClient(), "/register", "a@x.io", "pw1")

		var hash string
		err := env.db.Pool().QueryRow(env.ctx, "SELECT password_hash FROM accounts WHERE email = $1", "a@x.io").Scan(&hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(hash).NotTo(Equal("pw1"))
		Expect(hash).To(HavePrefix("$2a$"))
	})

	It("answers a wrong password and an unknown email identically", func() {
		submit(newClient(), "/register", "a@x.io", "pw1")

		wrong, wrongBody := submit(newClient(), "/login", "a@x.io", "nope")
		unknown, unknownBody := submit(newClient(), "/login", "b@x.io", "pw1")

		Expect(wrong.StatusCode).To(Equal(unknown.StatusCode))
		Expect(wrong.Header.Get("Location")).To(Equal(unknown.Header.Get("Location")))
		Expect(wrongBody).To(Equal(unknownBody))
		Expect(countRows("sessions")).To(Equal(0))
	})

	It("rejects empty fields without creating a record", func() {
		resp, body := submit(newClient(), "/register", "", "pw1")
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring("Username or password cannot be empty."))
		Expect(countRows("accounts")).To(Equal(0))
	})

	It("lets exactly one of many concurrent duplicate registrations succeed", func() {
		const workers = 8
		var wg sync.WaitGroup
		codes := make(chan int, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				resp, err := newClient().PostForm(env.Server.URL+"/register",
					url.Values{"email": {"race@x.io"}, "password": {"pw"}})
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				codes <- resp.StatusCode
			}()
		}
		wg.Wait()
		close(codes)

		created := 0
		for code := range codes {
			if code == http.StatusSeeOther {
				created++
			} else {
				Expect(code).To(Equal(http.StatusConflict))
			}
		}
		Expect(created).To(Equal(1))
		Expect(countRows("accounts")).To(Equal(1))
	})
})

var _ = Describe("Sessions", func() {
	login := func(c *http.Client) *http.Cookie {
		submit(c, "/register", "a@x.io", "pw1")
		resp, _ := submit(c, "/login", "a@x.io", "pw1")
		Expect(resp.Header.Get("Location")).To(Equal("/shop"))
		for _, ck := range resp.Cookies() {
			if ck.Name == web.DefaultCookieName {
				return ck
			}
		}
		Fail("no session cookie")
		return nil
	}

	It("stores the token hash, never the token", func() {
		cookie := login(newClient())

		var stored string
		err := env.db.Pool().QueryRow(env.ctx, "SELECT token_hash FROM sessions").Scan(&stored)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(Equal(auth.HashSessionToken(cookie.Value)))
		Expect(stored).NotTo(Equal(cookie.Value))
	})

	It("ends the session on logout", func() {
		c := newClient()
		login(c)

		resp, _ := submit(c, "/logout", "", "")
		Expect(resp.Header.Get("Location")).To(Equal("/"))
		Expect(countRows("sessions")).To(Equal(0))

		resp, _ = fetch(c, "/shop")
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		Expect(resp.Header.Get("Location")).To(Equal("/login"))
	})

	It("drops the identity when the account is deleted", func() {
		c := newClient()
		login(c)

		acct, err := env.Accounts.GetByEmail(env.ctx, "a@x.io")
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Accounts.Delete(env.ctx, acct.ID)).To(Succeed())

		resp, _ := fetch(c, "/shop")
		Expect(resp.Header.Get("Location")).To(Equal("/login"))
		Expect(countRows("sessions")).To(Equal(0))
	})

	It("purges sessions that have expired", func() {
		cookie := login(newClient())
		_, err := env.db.Pool().Exec(env.ctx,
			"UPDATE sessions SET expires_at = $1", time.Now().Add(-time.Minute))
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Manager.Resolve(env.ctx, cookie.Value).Authenticated()).To(BeFalse())

		login(newClient())
		_, err = env.db.Pool().Exec(env.ctx, "UPDATE sessions SET expires_at = $1", time.Now().Add(-time.Minute))
		Expect(err).NotTo(HaveOccurred())

		n, err := env.Manager.PurgeExpired(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically(">=", 1))
		Expect(countRows("sessions")).To(Equal(0))
	})

	It("keeps an unrelated request anonymous", func() {
		resp, body := fetch(newClient(), "/")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(strings.Contains(body, "Log in to browse the shop.")).To(BeTrue())
	})
})
