package app

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/maruel/natural"
	"github.com/spf13/cobra"

	"github.com/mlabs/kra_sdk_go/internal/session"
	"github.com/mlabs/kra_sdk_go/pkg/kra"
)

var errNotLoggedIn = errors.New(`not logged in, run "kra login" first`)

// token returns the saved session token.
func (a *app) token() (string, error) {
	sess, err := a.rt.store.Load()
	if errors.Is(err, session.ErrNoSession) {
		return "", errNotLoggedIn
	}
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}

func (a *app) loginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username := a.v.GetString("username")
			password := a.v.GetString("password")
			if username == "" || password == "" {
				return errors.New("--username and --password (or KRA_USERNAME and KRA_PASSWORD) are required")
			}

			token, err := a.rt.client.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := a.rt.store.Save(&session.Session{Username: username, Token: token, Created: time.Now().UTC()}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringP("username", "u", "", "account name")
	cmd.Flags().StringP("password", "p", "", "account password")
	return cmd
}

func (a *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show account and quota information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			info, err := a.rt.client.UserInfo(cmd.Context(), token)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Username:\t%s\n", info.Username)
			fmt.Fprintf(w, "Email:\t%s\n", info.Email)
			fmt.Fprintf(w, "Objects:\t%d / %d\n", info.Objects, info.ObjectQuota)
			fmt.Fprintf(w, "Storage:\t%s / %s\n", humanSize(info.Bytes), humanSize(info.BytesQuota))
			if info.NeedsRenewal() {
				fmt.Fprintln(w, "Subscription:\trenewal needed")
			} else {
				fmt.Fprintf(w, "Subscription:\t%s days left (until %s)\n", info.VIPDays(), info.SubscribedUntil)
			}
			return w.Flush()
		},
	}
}

func (a *app) listCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [folder-ident]",
		Short: "List a folder, or the root folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			var folder string
			if len(args) == 1 {
				folder = args[0]
			}
			files, err := a.rt.client.ListFiles(cmd.Context(), token, folder)
			if err != nil {
				return err
			}
			if err := sortFiles(files, a.v.GetString("sort")); err != nil {
				return err
			}
			return printFiles(cmd.OutOrStdout(), files)
		},
	}
	cmd.Flags().String("sort", "none", "display order: none, name or size")
	return cmd
}

// sortFiles orders a listing for display. "none" keeps the server order.
func sortFiles(files []kra.File, by string) error {
	switch by {
	case "", "none":
	case "name":
		sort.SliceStable(files, func(i, j int) bool {
			if files[i].Folder != files[j].Folder {
				return files[i].Folder
			}
			return natural.Less(files[i].Name, files[j].Name)
		})
	case "size":
		sort.SliceStable(files, func(i, j int) bool { return files[i].Size > files[j].Size })
	default:
		return fmt.Errorf("unknown sort order %q", by)
	}
	return nil
}

func printFiles(out io.Writer, files []kra.File) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tIDENT\tSIZE\tCREATED\tNAME")
	for _, f := range files {
		kind, size := "file", humanSize(f.Size)
		if f.Folder {
			kind, size = "dir", "-"
		}
		name := f.Name
		if name == "" {
			name = f.Link
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", kind, f.Ident, size, f.Created, name)
	}
	return w.Flush()
}

type linkResult struct {
	ident string
	url   string
	err   error
}

func (a *app) linkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link <file-ident>...",
		Short: "Print download links for one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			workers := a.v.GetInt("concurrency")
			if workers < 1 {
				workers = 1
			}

			ctx := cmd.Context()
			pool := pond.NewResultPool[linkResult](workers, pond.WithContext(ctx))
			defer pool.StopAndWait()

			group := pool.NewGroup()
			for _, ident := range args {
				ident := ident
				group.Submit(func() linkResult {
					link, err := a.rt.client.FileLink(ctx, token, ident)
					if err != nil {
						return linkResult{ident: ident, err: err}
					}
					return linkResult{ident: ident, url: link.URL}
				})
			}
			results, err := group.Wait()
			if err != nil {
				return err
			}

			var failed int
			out := cmd.OutOrStdout()
			for _, r := range results {
				if r.err != nil {
					failed++
					a.logger.Error().Err(r.err).Str("ident", r.ident).Msg("link failed")
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.ident, r.err)
					continue
				}
				if len(args) == 1 {
					fmt.Fprintln(out, r.url)
				} else {
					fmt.Fprintf(out, "%s\t%s\n", r.ident, r.url)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d links failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().Int("concurrency", 4, "links resolved in parallel")
	return cmd
}

func (a *app) mkdirCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			f, err := a.rt.client.CreateFolder(cmd.Context(), token, args[0], a.v.GetString("parent"), a.v.GetBool("shared"))
			if err != nil {
				return err
			}
			if f.Ident != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", f.Name, f.Ident)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", f.Name)
			}
			return nil
		},
	}
	cmd.Flags().String("parent", "", "parent folder ident (default root)")
	cmd.Flags().Bool("shared", false, "share the folder")
	return cmd
}

func (a *app) removeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <ident>",
		Short: "Delete a file or folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			if err := a.rt.client.DeleteObject(cmd.Context(), token, args[0], a.v.GetBool("recursive")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolP("recursive", "r", false, "delete non-empty folders")
	return cmd
}

func (a *app) statCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <ident>",
		Short: "Describe a file or folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			f, err := a.rt.client.ObjectInfo(cmd.Context(), token, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Ident:\t%s\n", f.Ident)
			fmt.Fprintf(w, "Name:\t%s\n", f.Name)
			fmt.Fprintf(w, "Folder:\t%t\n", f.Folder)
			fmt.Fprintf(w, "Size:\t%s (%d bytes)\n", humanSize(f.Size), f.Size)
			fmt.Fprintf(w, "Shared:\t%t\n", f.Shared)
			fmt.Fprintf(w, "Password:\t%t\n", f.Password)
			fmt.Fprintf(w, "Created:\t%s\n", f.Created)
			return w.Flush()
		},
	}
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			logoutErr := a.rt.client.Logout(cmd.Context(), token)
			if err := a.rt.store.Clear(); err != nil {
				return err
			}
			if logoutErr != nil && !errors.Is(logoutErr, kra.ErrUnauthorized) {
				return logoutErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print client and API versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "client: %s\n", Version)
			data, err := a.rt.client.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "api: %s\n", strings.TrimSpace(string(data)))
			return nil
		},
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
