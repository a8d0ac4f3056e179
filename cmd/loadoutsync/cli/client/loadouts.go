package client

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/mwantia/loadoutsync/internal/agent"
	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/internal/query"
	"github.com/spf13/cobra"

	config "github.com/mwantia/loadoutsync/internal/config/server"
)

func NewLoadoutsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loadouts",
		Short: "Inspect the loadouts of the configured store",
	}

	cmd.AddCommand(newLoadoutsListCommand())

	return cmd
}

func newLoadoutsListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List one page of loadouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			filter, page, user, err := listFilter(cmd, cfg.Sync.PageSize)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			backend, err := agent.OpenBackend(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			defer backend.Close()

			res, err := backend.Query(ctx, loadout.CollectionLoadouts, query.Compose(filter, page, user)...)
			if err != nil {
				return err
			}

			loadouts, errs := loadout.FromDocuments(res.Documents)
			for _, err := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipping: %v\n", err)
			}
			loadouts = query.Search(loadouts, filter.Search)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tOWNER\tLIKES\tVIEWS\tTAGS\tCREATED")
			for _, l := range loadouts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					l.ID, l.Setup.Name, l.Category, l.UserID, l.Likes, l.Views,
					strings.Join(l.Tags, ","), l.CreatedAt.Format("2006-01-02 15:04"))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if res.Cursor != "" && len(res.Documents) == page.Size {
				fmt.Fprintf(cmd.OutOrStdout(), "\nnext page: --cursor %s\n", res.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().String("search", "", "case-insensitive text in name, notes or tags")
	cmd.Flags().StringSlice("category", nil, "categories to include (Boss, Skill, Custom)")
	cmd.Flags().StringSlice("tag", nil, "tags to match, any of them")
	cmd.Flags().String("sort", string(query.SortByDate), "sort key (date, likes, views)")
	cmd.Flags().Bool("asc", false, "sort ascending")
	cmd.Flags().String("user", "", "only list loadouts of this user")
	cmd.Flags().Bool("all", false, "include private loadouts")
	cmd.Flags().Int("page-size", 0, "page size (defaults to sync.page_size)")
	cmd.Flags().String("cursor", "", "cursor printed by a previous page")

	return cmd
}

func listFilter(cmd *cobra.Command, defaultSize int) (query.Filter, query.Page, string, error) {
	filter := query.DefaultFilter()

	filter.Search, _ = cmd.Flags().GetString("search")
	filter.Tags, _ = cmd.Flags().GetStringSlice("tag")

	categories, _ := cmd.Flags().GetStringSlice("category")
	for _, c := range categories {
		category := loadout.Category(c)
		if !category.Valid() {
			return filter, query.Page{}, "", fmt.Errorf("unknown category '%s'", c)
		}
		filter.Categories = append(filter.Categories, category)
	}

	sortBy, _ := cmd.Flags().GetString("sort")
	switch key := query.SortKey(sortBy); key {
	case query.SortByDate, query.SortByLikes, query.SortByViews:
		filter.SortBy = key
	default:
		return filter, query.Page{}, "", fmt.Errorf("unknown sort key '%s'", sortBy)
	}
	if asc, _ := cmd.Flags().GetBool("asc"); asc {
		filter.SortDirection = query.Ascending
	}
	if all, _ := cmd.Flags().GetBool("all"); all {
		filter.Public = nil
	}

	user, _ := cmd.Flags().GetString("user")
	filter.PersonalOnly = user != ""

	size, _ := cmd.Flags().GetInt("page-size")
	if size <= 0 {
		size = defaultSize
	}
	cursor, _ := cmd.Flags().GetString("cursor")

	return filter, query.Page{Size: size, Cursor: cursor}, user, nil
}
