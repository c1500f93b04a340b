package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/library"
)

// LibraryCmd manages the saved prompt library
var LibraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	Short:   "Manage the saved prompt library",
	Long: `Save, search, and organize reusable prompts. Prompts live in the configured
SQLite database and are shared with the MCP server's library tools.`,
}

var librarySaveCmd = &cobra.Command{
	Use:   "save <title> <content|->",
	Short: "Save a prompt to the library",
	Long:  `Save a prompt under a title. Pass "-" as the content to read it from stdin. Saving an existing title updates it in place.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runLibrarySave,
}

var libraryGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a saved prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryGet,
}

var librarySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search saved prompts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLibrarySearch,
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved prompts, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runLibraryList,
}

var libraryCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories in use",
	Args:  cobra.NoArgs,
	RunE:  runLibraryCategories,
}

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryDelete,
}

var libraryImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import prompt files into the library",
	Long: `Import a markdown prompt file, or every .md/.txt file in a directory.
Files may carry YAML frontmatter (title, description, category, tags); the
title defaults to the file name. Existing titles are updated in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runLibraryImport,
}

var (
	librarySaveDescription string
	librarySaveCategory    string
	librarySaveTags        []string

	librarySearchCategory string
	librarySearchTags     []string
	librarySearchLimit    int

	libraryListLimit int
)

func init() {
	librarySaveCmd.Flags().StringVar(&librarySaveDescription, "description", "", "Short description of the prompt")
	librarySaveCmd.Flags().StringVar(&librarySaveCategory, "category", "", "Category (defaults to General)")
	librarySaveCmd.Flags().StringSliceVar(&librarySaveTags, "tags", nil, "Tags (comma-separated or repeated)")

	librarySearchCmd.Flags().StringVar(&librarySearchCategory, "category", "", "Restrict matches to a category")
	librarySearchCmd.Flags().StringSliceVar(&librarySearchTags, "tags", nil, "Require all of these tags")
	librarySearchCmd.Flags().IntVar(&librarySearchLimit, "limit", library.DefaultSearchLimit, "Maximum number of results")

	libraryListCmd.Flags().IntVar(&libraryListLimit, "limit", library.DefaultListLimit, "Maximum number of results")

	LibraryCmd.AddCommand(librarySaveCmd)
	LibraryCmd.AddCommand(libraryGetCmd)
	LibraryCmd.AddCommand(librarySearchCmd)
	LibraryCmd.AddCommand(libraryListCmd)
	LibraryCmd.AddCommand(libraryCategoriesCmd)
	LibraryCmd.AddCommand(libraryDeleteCmd)
	LibraryCmd.AddCommand(libraryImportCmd)
}

func runLibrarySave(cmd *cobra.Command, args []string) error {
	content, err := readPromptArg(cmd, args[1])
	if err != nil {
		return err
	}

	store, database, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	saved, err := store.Save(cmd.Context(), &library.SavedPrompt{
		Title:       args[0],
		Content:     content,
		Description: librarySaveDescription,
		Category:    librarySaveCategory,
		Tags:        librarySaveTags,
	})
	if err != nil {
		return err
	}

	pterm.Success.Printf("Saved prompt %d: %s\n", saved.ID, saved.Title)
	return nil
}

func runLibraryGet(cmd *cobra.Command, args []string) error {
	id, err := parsePromptID(args[0])
	if err != nil {
		return err
	}

	store, database, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	// Fetching a prompt counts as using it
	if err := store.IncrementUsage(cmd.Context(), id); err != nil {
		return err
	}
	saved, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	pterm.Printf("\n%s %s\n", pterm.Cyan(fmt.Sprintf("#%d", saved.ID)), saved.Title)
	if saved.Description != "" {
		pterm.Printf("%s\n", pterm.Gray(saved.Description))
	}
	pterm.Printf("%s %s", pterm.Gray("Category:"), saved.Category)
	if len(saved.Tags) > 0 {
		pterm.Printf("   %s %s", pterm.Gray("Tags:"), strings.Join(saved.Tags, ", "))
	}
	pterm.Printf("   %s %d\n", pterm.Gray("Used:"), saved.UsageCount)
	pterm.Printf("%s %s\n\n", pterm.Gray("Updated:"), saved.UpdatedAt.Format(time.RFC3339))
	fmt.Println(saved.Content)
	return nil
}

func runLibrarySearch(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) > 0 {
		text = args[0]
	}

	store, database, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	prompts, err := store.Search(cmd.Context(), library.Query{
		Text:     text,
		Category: librarySearchCategory,
		Tags:     librarySearchTags,
		Limit:    librarySearchLimit,
	})
	if err != nil {
		return err
	}

	printPromptList(prompts)
	return nil
}

func runLibraryList(cmd *cobra.Command, args []string) error {
	store, database, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	prompts, err := store.List(cmd.Context(), libraryListLimit)
	if err != nil {
		return err
	}

	printPromptList(prompts)
	return nil
}

func runLibraryCategories(cmd *cobra.Command, args []string) error {
	store, database, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	categories, err := store.Categories(cmd.Context())
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		pterm.Info.Println("No prompts saved yet")
		return nil
	}

	for _, category := range categories {
		pterm.Printf("  %s\n", category)
	}
	return nil
}

func runLibraryDelete(cmd *cobra.Command, args []string) error {
	id, err := parsePromptID(args[0])
	if err != nil {
		return err
	}

	store, database, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	deleted, err := store.Delete(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !deleted {
		pterm.Warning.Printf("Prompt %d not found\n", id)
		return nil
	}

	pterm.Success.Printf("Prompt %d deleted\n", id)
	return nil
}

func runLibraryImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "cannot import %s", path)
	}

	store, database, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	if info.IsDir() {
		count, err := store.ImportDir(cmd.Context(), path)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Imported %d prompt file(s) from %s\n", count, path)
		return nil
	}

	saved, err := store.ImportFile(cmd.Context(), path)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Imported %q as prompt %d\n", saved.Title, saved.ID)
	return nil
}

// parsePromptID parses a numeric prompt id argument.
func parsePromptID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, errors.Newf("invalid prompt id %q", arg)
	}
	return id, nil
}

// printPromptList renders one line per prompt plus a count footer.
func printPromptList(prompts []*library.SavedPrompt) {
	if len(prompts) == 0 {
		pterm.Info.Println("No prompts matched")
		return
	}

	for _, p := range prompts {
		line := fmt.Sprintf("  %s %s", pterm.Cyan(fmt.Sprintf("#%-4d", p.ID)), p.Title)
		details := pterm.Gray(p.Category)
		if len(p.Tags) > 0 {
			details += " " + pterm.Gray("["+strings.Join(p.Tags, ", ")+"]")
		}
		pterm.Printf("%s  %s\n", line, details)
	}
	pterm.Printf("\n%d prompt(s)\n", len(prompts))
}
